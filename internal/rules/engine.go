// Package rules evaluates a parsed page against the on-page SEO rule set.
//
// Checks run in a fixed order (title, meta description, headings, images,
// semantic structure, meta/body relevance) and their findings are
// concatenated in that order.
package rules

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/relevance"
	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// RelevanceScorer compares a meta description with body text.
type RelevanceScorer interface {
	CompareTexts(ctx context.Context, text1, text2 string, method relevance.Method, agg relevance.Aggregation) (float64, error)
}

// TextExtractor produces the cleaned body text of a document.
type TextExtractor interface {
	Text(doc *goquery.Document) string
}

// Thresholds holds every tunable constant used by the checks.
type Thresholds struct {
	TitleOptimalLength int
	TitleDelta         int
	MetaMinLength      int
	MetaMaxLength      int
	// MetaIdealMaxLength is the upper bound of the OPTIMAL meta description
	// window that starts at MetaMinLength. It defaults to MetaMinLength, so only
	// descriptions of exactly MetaMinLength characters are OPTIMAL; set it to
	// MetaMaxLength to accept the whole [min, max] window.
	MetaIdealMaxLength int
	RelevanceLow       float64
	RelevanceHigh      float64
	SemanticGreatCount int
}

// DefaultThresholds returns the stock rule constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TitleOptimalLength: 55,
		TitleDelta:         10,
		MetaMinLength:      120,
		MetaMaxLength:      160,
		MetaIdealMaxLength: 120,
		RelevanceLow:       0.3,
		RelevanceHigh:      0.5,
		SemanticGreatCount: 4,
	}
}

// Config selects thresholds and the relevance strategy.
type Config struct {
	Thresholds  Thresholds
	Method      relevance.Method
	Aggregation relevance.Aggregation
}

// Engine is stateless apart from its injected collaborators.
type Engine struct {
	cfg       Config
	scorer    RelevanceScorer
	extractor TextExtractor
	logger    *zap.Logger
}

// New returns an Engine. Zero-valued strategy fields default to tf-idf and max.
func New(cfg Config, scorer RelevanceScorer, extractor TextExtractor, logger *zap.Logger) *Engine {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.Method == "" {
		cfg.Method = relevance.MethodTFIDF
	}
	if cfg.Aggregation == "" {
		cfg.Aggregation = relevance.AggregateMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, scorer: scorer, extractor: extractor, logger: logger}
}

// Evaluate runs every check against doc. When the relevance comparison fails
// the findings of the other checks are still returned together with the error.
func (e *Engine) Evaluate(ctx context.Context, doc *goquery.Document) ([]seo.Finding, error) {
	th := e.cfg.Thresholds
	var findings []seo.Finding
	findings = append(findings, CheckTitle(doc, th)...)
	findings = append(findings, CheckMetaDescription(doc, th)...)
	findings = append(findings, CheckHeadings(doc)...)
	findings = append(findings, CheckImages(doc)...)
	findings = append(findings, CheckSemantic(doc, th)...)

	relevant, err := e.checkRelevance(ctx, doc)
	if err != nil {
		return findings, err
	}
	return append(findings, relevant...), nil
}
