package relevance

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TF-IDF defaults.
const (
	DefaultMaxFeatures = 1000
	DefaultMaxNGram    = 2
)

// TFIDFConfig tunes the term vector space.
type TFIDFConfig struct {
	// MaxFeatures caps the vocabulary to the most frequent terms across both texts.
	MaxFeatures int
	// MaxNGram is the largest word n-gram, unigrams are always included.
	MaxNGram int
	// StopWords replaces the built-in English and Russian list when non-nil.
	StopWords map[string]struct{}
}

// TFIDF scores chunks in a vocabulary built only from the two compared texts.
type TFIDF struct {
	maxFeatures int
	maxNGram    int
	stopWords   map[string]struct{}
}

// NewTFIDF returns a TFIDF backend, zero fields take the defaults.
func NewTFIDF(cfg TFIDFConfig) *TFIDF {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	if cfg.MaxNGram <= 0 {
		cfg.MaxNGram = DefaultMaxNGram
	}
	if cfg.StopWords == nil {
		cfg.StopWords = defaultStopWords
	}
	return &TFIDF{maxFeatures: cfg.MaxFeatures, maxNGram: cfg.MaxNGram, stopWords: cfg.StopWords}
}

// Similarity implements Backend. When stop word and short token filtering
// leaves no vocabulary at all, the chunks are vectorized unfiltered instead.
func (t *TFIDF) Similarity(_ context.Context, chunks1, chunks2 []string) (Matrix, error) {
	corpus := t.corpus(chunks1, chunks2, true)
	vocab := t.vocabulary(corpus)
	if len(vocab) == 0 {
		corpus = t.corpus(chunks1, chunks2, false)
		vocab = t.vocabulary(corpus)
	}
	vectors := t.vectorize(corpus, vocab)
	return cosineMatrix(vectors[:len(chunks1)], vectors[len(chunks1):]), nil
}

func (t *TFIDF) corpus(chunks1, chunks2 []string, filter bool) [][]string {
	corpus := make([][]string, 0, len(chunks1)+len(chunks2))
	for _, c := range chunks1 {
		corpus = append(corpus, t.terms(c, filter))
	}
	for _, c := range chunks2 {
		corpus = append(corpus, t.terms(c, filter))
	}
	return corpus
}

// terms tokenizes text into lowercase word n-grams. With filter set, stop
// words and single-rune tokens are dropped first.
func (t *TFIDF) terms(text string, filter bool) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := words[:0]
	for _, w := range words {
		if filter && utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := t.stopWords[w]; filter && stop {
			continue
		}
		tokens = append(tokens, w)
	}
	var out []string
	for n := 1; n <= t.maxNGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// vocabulary keeps the maxFeatures most frequent terms, ties broken alphabetically,
// and maps each kept term to its column.
func (t *TFIDF) vocabulary(corpus [][]string) map[string]int {
	freq := map[string]int{}
	for _, doc := range corpus {
		for _, term := range doc {
			freq[term]++
		}
	}
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > t.maxFeatures {
		terms = terms[:t.maxFeatures]
	}
	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}
	return vocab
}

// vectorize builds L2-normalized tf-idf rows using smooth idf.
func (t *TFIDF) vectorize(corpus [][]string, vocab map[string]int) [][]float64 {
	counts := make([][]float64, len(corpus))
	df := make([]float64, len(vocab))
	for i, doc := range corpus {
		row := make([]float64, len(vocab))
		for _, term := range doc {
			if col, ok := vocab[term]; ok {
				row[col]++
			}
		}
		for col, c := range row {
			if c > 0 {
				df[col]++
			}
		}
		counts[i] = row
	}
	n := float64(len(corpus))
	for _, row := range counts {
		var norm float64
		for col := range row {
			row[col] *= math.Log((1+n)/(1+df[col])) + 1
			norm += row[col] * row[col]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for col := range row {
			row[col] /= norm
		}
	}
	return counts
}
