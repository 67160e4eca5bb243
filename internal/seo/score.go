package seo

import "time"

// ComputeScore reduces findings into a 0..100 score.
// No findings yields 100. Otherwise the positive ratio is scaled to 100 and
// half the CRITICAL ratio is subtracted, clamped to [0, 100].
func ComputeScore(findings []Finding) float64 {
	if len(findings) == 0 {
		return 100.0
	}
	var positive, critical int
	for _, f := range findings {
		if f.Level.Positive() {
			positive++
		}
		if f.Level == SeverityCritical {
			critical++
		}
	}
	total := float64(len(findings))
	score := float64(positive)/total*100 - float64(critical)/total*50
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// AllFindings flattens findings across pages in page order.
func AllFindings(pages []Page) []Finding {
	var out []Finding
	for _, p := range pages {
		out = append(out, p.Findings...)
	}
	return out
}

// NewWebsite builds the Website for a finished scan. The score and page count
// are derived from pages.
func NewWebsite(id, url string, pages []Page, now time.Time) Website {
	if pages == nil {
		pages = []Page{}
	}
	return Website{
		ID:        id,
		URL:       url,
		SEOScore:  ComputeScore(AllFindings(pages)),
		PageCount: len(pages),
		Pages:     pages,
		CreatedAt: now,
	}
}

// Distribution counts findings per severity across all pages. Every severity
// is present in the result.
func (w Website) Distribution() LevelDistribution {
	return Distribute(AllFindings(w.Pages))
}

// Distribute counts findings per severity, defaulting absent severities to 0.
func Distribute(findings []Finding) LevelDistribution {
	dist := make(LevelDistribution, len(Severities))
	for _, s := range Severities {
		dist[s] = 0
	}
	for _, f := range findings {
		dist[f.Level]++
	}
	return dist
}
