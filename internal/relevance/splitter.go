package relevance

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 10
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks no longer than Size runes,
// preferring paragraph, then line, then word boundaries. A separator stays
// attached to the start of the piece that follows it.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a Splitter. Non-positive size falls back to the default;
// overlap is clamped to [0, size).
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// Split returns the chunks of text. Whitespace-only text yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = runesOf(text)
	} else {
		pieces = splitKeepingSeparator(text, separator)
	}

	var out, good []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

func splitKeepingSeparator(text, separator string) []string {
	parts := strings.Split(text, separator)
	out := make([]string, 0, len(parts))
	out = append(out, parts[0])
	for _, p := range parts[1:] {
		out = append(out, separator+p)
	}
	return out
}

// merge packs pieces into chunks up to size, carrying up to overlap runes
// of trailing pieces into the next chunk. Pieces already carry their
// separators, so they are concatenated as is.
func (s *Splitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func runesOf(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
