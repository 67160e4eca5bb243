// Package relevance compares two text blobs for semantic similarity.
//
// Both texts are chunked, a pairwise cosine similarity matrix is computed by a
// Backend, and the matrix is reduced to a scalar by an Aggregation.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrUnknownMethod is returned for methods without a registered backend.
var ErrUnknownMethod = errors.New("unknown comparison method")

// Method selects a similarity backend.
type Method string

// Supported methods.
const (
	MethodTFIDF      Method = "tf-idf"
	MethodEmbeddings Method = "embeddings"
)

// ParseMethod validates a configured method name.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case MethodTFIDF, MethodEmbeddings:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
	}
}

// Backend produces the chunk similarity matrix, rows are chunks of the first text.
type Backend interface {
	Similarity(ctx context.Context, chunks1, chunks2 []string) (Matrix, error)
}

// Comparator dispatches to the backend registered for a method.
type Comparator struct {
	splitter *Splitter
	backends map[Method]Backend
	logger   *zap.Logger
}

// Option customizes a Comparator.
type Option func(*Comparator)

// WithBackend registers b for m, replacing any previous registration.
func WithBackend(m Method, b Backend) Option {
	return func(c *Comparator) {
		c.backends[m] = b
	}
}

// WithSplitter overrides the default chunk splitter.
func WithSplitter(s *Splitter) Option {
	return func(c *Comparator) {
		c.splitter = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewComparator returns a Comparator with the TF-IDF backend registered.
func NewComparator(opts ...Option) *Comparator {
	c := &Comparator{
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		backends: map[Method]Backend{MethodTFIDF: NewTFIDF(TFIDFConfig{})},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompareTexts returns the aggregated chunk similarity of text1 and text2 in [0, 1].
func (c *Comparator) CompareTexts(
	ctx context.Context,
	text1, text2 string,
	method Method,
	agg Aggregation,
) (float64, error) {
	backend, ok := c.backends[method]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if !agg.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUndefinedAggregation, agg)
	}
	chunks1 := c.splitter.Split(text1)
	chunks2 := c.splitter.Split(text2)
	if len(chunks1) == 0 || len(chunks2) == 0 {
		return 0, nil
	}
	matrix, err := backend.Similarity(ctx, chunks1, chunks2)
	if err != nil {
		return 0, fmt.Errorf("similarity %s: %w", method, err)
	}
	score, err := agg.Reduce(matrix)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("texts compared",
		zap.String("method", string(method)),
		zap.String("aggregation", string(agg)),
		zap.Int("chunks1", len(chunks1)),
		zap.Int("chunks2", len(chunks2)),
		zap.Float64("score", score),
	)
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
