package seo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity classifies a single finding.
type Severity string

// Severity values in display order.
const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityOptimal  Severity = "optimal"
	SeverityGood     Severity = "good"
	SeverityGreat    Severity = "great"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityError,
	SeverityWarning,
	SeverityInfo,
	SeverityOptimal,
	SeverityGood,
	SeverityGreat,
}

// Rank returns the display position of s, or -1 for unknown values.
func (s Severity) Rank() int {
	for i, candidate := range Severities {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Positive reports whether s counts toward the positive scoring bucket.
func (s Severity) Positive() bool {
	switch s {
	case SeverityOptimal, SeverityGood, SeverityGreat, SeverityInfo:
		return true
	default:
		return false
	}
}

// ParseSeverity converts a stored severity string back into a Severity.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if s.Rank() < 0 {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// Finding categories.
const (
	CategoryTitle    = "title"
	CategoryMeta     = "meta"
	CategoryHeading  = "heading"
	CategoryImage    = "image"
	CategorySemantic = "semantic"
)

// Finding is one rule-engine observation about a page.
type Finding struct {
	Level    Severity `json:"level"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
	Element  string   `json:"element"`
}

// PageMeta is the head metadata captured at scan time.
type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PageContent is the extracted meta plus the cleaned body text.
type PageContent struct {
	Meta PageMeta `json:"meta"`
	Text string   `json:"text"`
}

// Page is the result of scanning one URL.
type Page struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	RenderingTime float64     `json:"rendering_time"`
	Findings      []Finding   `json:"seo_logs"`
	Content       PageContent `json:"content"`
}

// Website aggregates every successfully scanned page of one scan.
type Website struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	SEOScore  float64   `json:"seo_score"`
	PageCount int       `json:"page_count"`
	Pages     []Page    `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanRequest asks for one website scan. ID becomes the Website ID.
type ScanRequest struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Submitted time.Time `json:"submitted"`
}

// ScanCompleted is published once a website has been scanned and stored.
type ScanCompleted struct {
	WebsiteID string `json:"website_id"`
	URL       string `json:"url"`
	PageCount int    `json:"page_count"`
}

// LevelDistribution counts findings per severity.
type LevelDistribution map[Severity]int

// Total returns the number of findings represented by d.
func (d LevelDistribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// MarshalJSON always emits every severity, in display order.
func (d LevelDistribution) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range Severities {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%d", s, d[s])
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON accepts the object form produced by MarshalJSON.
func (d *LevelDistribution) UnmarshalJSON(data []byte) error {
	raw := map[string]int{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode distribution: %w", err)
	}
	out := make(LevelDistribution, len(Severities))
	for _, s := range Severities {
		out[s] = 0
	}
	for k, v := range raw {
		s, err := ParseSeverity(k)
		if err != nil {
			return err
		}
		out[s] = v
	}
	*d = out
	return nil
}

// Report is the archived and printed form of a finished scan.
type Report struct {
	Website      Website           `json:"website"`
	Distribution LevelDistribution `json:"distribution"`
}

// NewReport pairs w with its severity distribution.
func NewReport(w Website) Report {
	return Report{Website: w, Distribution: w.Distribution()}
}
