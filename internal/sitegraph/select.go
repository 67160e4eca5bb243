package sitegraph

import (
	"net/url"
	"sort"
	"strings"
)

// Keyword match weights.
const (
	pathWeight   = 3
	titleWeight  = 2
	anchorWeight = 1
)

// DefaultKeywords are the key-page hints used when none are configured.
var DefaultKeywords = []string{
	"about", "contact", "service", "product", "catalog", "price", "pricing",
	"blog", "news", "shop", "delivery", "faq",
	"o-nas", "kontakty", "uslugi", "katalog", "ceny", "dostavka",
	"о компании", "контакты", "услуги", "каталог", "цены", "доставка",
}

// Score returns the keyword relevance of n. Each keyword adds a weight for a
// match in the path, the title and any incoming anchor text.
func Score(n Node, keywords []string) int {
	pathText := pathTokens(n.URL)
	title := strings.ToLower(n.Title)
	anchors := strings.ToLower(strings.Join(n.AnchorTexts, " \x00 "))
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(pathText, kw) {
			score += pathWeight
		}
		if strings.Contains(title, kw) {
			score += titleWeight
		}
		if strings.Contains(anchors, kw) {
			score += anchorWeight
		}
	}
	return score
}

// pathTokens lowercases and unescapes the URL path so that percent-encoded
// non-ASCII slugs can match keywords.
func pathTokens(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	p := u.EscapedPath()
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return strings.ToLower(p)
}

// SelectKeyPages returns at most maxResults URLs of g. The seed comes first
// when it was reachable, then nodes by descending Score, ties broken by
// discovery order. Nodes whose fetch failed are never returned.
func SelectKeyPages(g *Graph, keywords []string, maxResults int) []string {
	if g == nil || maxResults <= 0 {
		return []string{}
	}
	type ranked struct {
		url   string
		score int
		order int
	}
	var candidates []ranked
	out := make([]string, 0, maxResults)
	for _, n := range g.Nodes() {
		if n.Failed {
			continue
		}
		if n.URL == g.Seed() {
			out = append(out, n.URL)
			continue
		}
		candidates = append(candidates, ranked{url: n.URL, score: Score(n, keywords), order: n.Order})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})
	for _, c := range candidates {
		if len(out) >= maxResults {
			break
		}
		out = append(out, c.url)
	}
	return out
}
