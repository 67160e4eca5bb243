package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// SemanticTags are the HTML5 sectioning elements looked for by CheckSemantic.
var SemanticTags = []string{"header", "nav", "main", "article", "section", "aside", "footer"}

var knownImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

var imageHints = []string{"image", "img", "picture"}

func finding(level seo.Severity, category, element, format string, args ...any) seo.Finding {
	return seo.Finding{
		Level:    level,
		Message:  fmt.Sprintf(format, args...),
		Category: category,
		Element:  element,
	}
}

// CheckTitle validates presence and length of <title>.
func CheckTitle(doc *goquery.Document, th Thresholds) []seo.Finding {
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return []seo.Finding{finding(seo.SeverityCritical, seo.CategoryTitle, "title", "Title tag is missing")}
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return []seo.Finding{finding(seo.SeverityCritical, seo.CategoryTitle, "title", "Title is empty")}
	}
	n := utf8.RuneCountInString(text)
	low, high := th.TitleOptimalLength-th.TitleDelta, th.TitleOptimalLength+th.TitleDelta
	switch {
	case n < low:
		return []seo.Finding{finding(seo.SeverityWarning, seo.CategoryTitle, "title",
			"Title is too short: %d characters, recommended %d-%d", n, low, high)}
	case n > high:
		return []seo.Finding{finding(seo.SeverityWarning, seo.CategoryTitle, "title",
			"Title is too long: %d characters, recommended %d-%d", n, low, high)}
	default:
		return []seo.Finding{finding(seo.SeverityOptimal, seo.CategoryTitle, "title",
			"Title length is optimal: %d characters", n)}
	}
}

// metaDescription returns the content of meta[name=description] and whether the tag exists.
func metaDescription(doc *goquery.Document) (string, bool) {
	sel := doc.Find(`meta[name="description"]`).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.AttrOr("content", "")), true
}

// CheckMetaDescription validates presence and length of the meta description.
func CheckMetaDescription(doc *goquery.Document, th Thresholds) []seo.Finding {
	content, ok := metaDescription(doc)
	if !ok {
		return []seo.Finding{finding(seo.SeverityCritical, seo.CategoryMeta, "meta",
			"Meta description is missing")}
	}
	if content == "" {
		return []seo.Finding{finding(seo.SeverityCritical, seo.CategoryMeta, "meta",
			"Meta description is empty")}
	}
	n := utf8.RuneCountInString(content)
	switch {
	case n > th.MetaMaxLength:
		return []seo.Finding{finding(seo.SeverityWarning, seo.CategoryMeta, "meta",
			"Meta description is too long: %d characters, maximum %d", n, th.MetaMaxLength)}
	case n >= th.MetaMinLength && n <= th.MetaIdealMaxLength:
		return []seo.Finding{finding(seo.SeverityOptimal, seo.CategoryMeta, "meta",
			"Meta description length is optimal: %d characters", n)}
	default:
		return []seo.Finding{finding(seo.SeverityWarning, seo.CategoryMeta, "meta",
			"Meta description is too short: %d characters, recommended %d-%d",
			n, th.MetaMinLength, th.MetaMaxLength)}
	}
}

// CheckHeadings validates the <h1> count and the heading level hierarchy.
func CheckHeadings(doc *goquery.Document) []seo.Finding {
	var out []seo.Finding
	switch h1 := doc.Find("h1").Length(); {
	case h1 == 0:
		out = append(out, finding(seo.SeverityCritical, seo.CategoryHeading, "h1", "H1 heading is missing"))
	case h1 > 1:
		out = append(out, finding(seo.SeverityWarning, seo.CategoryHeading, "h1",
			"Page has %d H1 headings, expected one", h1))
	default:
		out = append(out, finding(seo.SeverityOptimal, seo.CategoryHeading, "h1", "Page has exactly one H1 heading"))
	}

	last, seen, broken := 0, 0, false
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		name := strings.ToLower(goquery.NodeName(sel))
		level, err := strconv.Atoi(strings.TrimPrefix(name, "h"))
		if err != nil {
			return
		}
		seen++
		if level > last+1 {
			broken = true
			out = append(out, finding(seo.SeverityWarning, seo.CategoryHeading, name,
				"Heading hierarchy is broken: H%d follows H%d", level, last))
		}
		last = level
	})
	if seen > 0 && !broken {
		out = append(out, finding(seo.SeverityGreat, seo.CategoryHeading, fmt.Sprintf("h1-h%d", last),
			"Heading hierarchy is correct"))
	}
	return out
}

// IsUndescribedImageSource reports whether src looks like an image URL
// (it mentions image, img or picture) without a recognized file extension.
func IsUndescribedImageSource(src string) bool {
	src = strings.ToLower(src)
	hinted := false
	for _, hint := range imageHints {
		if strings.Contains(src, hint) {
			hinted = true
			break
		}
	}
	if !hinted {
		return false
	}
	for _, ext := range knownImageExtensions {
		if strings.Contains(src, ext) {
			return false
		}
	}
	return true
}

// CheckImages validates alt text and image file naming.
func CheckImages(doc *goquery.Document) []seo.Finding {
	images := doc.Find("img")
	if images.Length() == 0 {
		return []seo.Finding{finding(seo.SeverityInfo, seo.CategoryImage, "img", "Page has no images")}
	}
	var out []seo.Finding
	undescribed := 0
	images.Each(func(_ int, sel *goquery.Selection) {
		src := sel.AttrOr("src", "")
		if sel.AttrOr("alt", "") == "" {
			out = append(out, finding(seo.SeverityWarning, seo.CategoryImage, "img",
				"Image has no alt text: %s", src))
		}
		if IsUndescribedImageSource(src) {
			undescribed++
		}
	})
	if undescribed > 0 {
		out = append(out, finding(seo.SeverityWarning, seo.CategoryImage, "img",
			"%d images have non-descriptive file names", undescribed))
	}
	return out
}

// CheckSemantic reports missing and used HTML5 semantic elements.
func CheckSemantic(doc *goquery.Document, th Thresholds) []seo.Finding {
	var out []seo.Finding
	var used []string
	for _, tag := range SemanticTags {
		if doc.Find(tag).Length() == 0 {
			out = append(out, finding(seo.SeverityInfo, seo.CategorySemantic, tag,
				"Semantic tag <%s> is not used", tag))
			continue
		}
		used = append(used, tag)
	}
	if len(used) > 0 {
		element := strings.Join(used, ";")
		out = append(out, finding(seo.SeverityGood, seo.CategorySemantic, element,
			"Semantic tags used: %s", strings.Join(used, ", ")))
		if len(used) > th.SemanticGreatCount {
			out = append(out, finding(seo.SeverityGreat, seo.CategorySemantic, element,
				"Page uses %d semantic tags", len(used)))
		}
	}
	return out
}

// bodyIsEmpty reports whether the document has no body or a body with
// neither child elements nor text. The HTML parser always synthesizes a
// <body>, so a page served without one arrives here as an empty body.
func bodyIsEmpty(doc *goquery.Document) bool {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return true
	}
	return body.Children().Length() == 0 && strings.TrimSpace(body.Text()) == ""
}

func (e *Engine) checkRelevance(ctx context.Context, doc *goquery.Document) ([]seo.Finding, error) {
	description, ok := metaDescription(doc)
	if !ok || description == "" {
		return nil, nil
	}
	if bodyIsEmpty(doc) {
		return []seo.Finding{finding(seo.SeverityCritical, seo.CategorySemantic, "body",
			"Page has a meta description but no body content")}, nil
	}
	text := e.extractor.Text(doc)
	score, err := e.scorer.CompareTexts(ctx, description, text, e.cfg.Method, e.cfg.Aggregation)
	if err != nil {
		return nil, fmt.Errorf("meta/body relevance: %w", err)
	}
	th := e.cfg.Thresholds
	pct := score * 100
	switch {
	case score <= th.RelevanceLow:
		return []seo.Finding{finding(seo.SeverityWarning, seo.CategorySemantic, "body",
			"Meta description barely matches the page content: relevance %.1f%%", pct)}, nil
	case score < th.RelevanceHigh:
		return []seo.Finding{finding(seo.SeverityInfo, seo.CategorySemantic, "body",
			"Meta description partially matches the page content: relevance %.1f%%", pct)}, nil
	default:
		return []seo.Finding{finding(seo.SeverityGreat, seo.CategorySemantic, "body",
			"Meta description matches the page content: relevance %.1f%%", pct)}, nil
	}
}
