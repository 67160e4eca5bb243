// Package extract turns a rendered DOM into the cleaned, markdown-normalized
// body text stored with each page.
package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TextSelector lists the text-bearing elements kept in the cleaned text.
const TextSelector = "h1, h2, h3, h4, h5, h6, p, li, td, th"

var excludedTags = map[string]struct{}{
	"script": {}, "style": {}, "svg": {}, "path": {}, "meta": {},
	"link": {}, "nav": {}, "footer": {}, "header": {},
}

// Extractor is safe for concurrent use.
type Extractor struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New builds an Extractor with a UGC sanitizing policy and a CommonMark converter.
func New() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Text returns one markdown line per text-bearing element of <body>, in
// document order. Elements under script, style, svg, nav, header or footer
// (and similar non-content tags) are ignored. The document is not modified.
func (e *Extractor) Text(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	var lines []string
	body.Find(TextSelector).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if underExcluded(node) {
			return
		}
		if line := e.render(sel, node); line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, "\n")
}

func (e *Extractor) render(sel *goquery.Selection, node *html.Node) string {
	plain := VisibleText(node)
	if plain == "" {
		return ""
	}
	raw, err := goquery.OuterHtml(sel)
	if err != nil {
		return plain
	}
	md, err := e.conv.ConvertString(e.policy.Sanitize(raw))
	if err != nil {
		return plain
	}
	if md = strings.TrimSpace(md); md == "" {
		return plain
	}
	return md
}

// VisibleText joins the trimmed text nodes under n with single spaces,
// skipping excluded subtrees.
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isExcluded(n) {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func isExcluded(n *html.Node) bool {
	_, ok := excludedTags[strings.ToLower(n.Data)]
	return ok
}

func underExcluded(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && isExcluded(p) {
			return true
		}
	}
	return false
}
