package relevance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

const sampleText = "Handmade oak furniture built in our workshop. Every table and chair is " +
	"cut, joined and finished by hand using sustainably sourced timber. " +
	"We deliver custom dining tables, benches and bookshelves across the region."

func TestCompareTexts_SelfSimilarity(t *testing.T) {
	t.Parallel()

	c := NewComparator()
	for _, agg := range []Aggregation{AggregateMax, AggregateMean, AggregateMedian} {
		score, err := c.CompareTexts(context.Background(), sampleText, sampleText, MethodTFIDF, agg)
		require.NoError(t, err)
		require.InDelta(t, 1.0, score, 1e-9, "aggregation %s", agg)
	}
}

func TestCompareTexts_ShortTextSelfSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "stop words only", text: "the and of"},
		{name: "single rune", text: "a"},
		{name: "short cyrillic", text: "О нас"},
		{name: "short question", text: "Is it on?"},
	}
	c := NewComparator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			score, err := c.CompareTexts(context.Background(), tt.text, tt.text, MethodTFIDF, AggregateMax)
			require.NoError(t, err)
			require.InDelta(t, 1.0, score, 1e-9)
		})
	}
}

func TestCompareTexts_StopWordsDoNotMatchContent(t *testing.T) {
	t.Parallel()

	score, err := NewComparator().CompareTexts(context.Background(), "the and of", sampleText, MethodTFIDF, AggregateMax)
	require.NoError(t, err)
	require.Less(t, score, 0.3)
}

func TestCompareTexts_LongTextSelfSimilarityMax(t *testing.T) {
	t.Parallel()

	long := strings.Repeat(sampleText+"\n\n", 20) + "Contact the workshop for quotes."
	c := NewComparator()
	score, err := c.CompareTexts(context.Background(), long, long, MethodTFIDF, AggregateMax)
	require.NoError(t, err)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestCompareTexts_UnrelatedTextsScoreLow(t *testing.T) {
	t.Parallel()

	c := NewComparator()
	score, err := c.CompareTexts(context.Background(),
		"Quarterly tax filing deadlines for freelancers",
		sampleText, MethodTFIDF, AggregateMax)
	require.NoError(t, err)
	require.Less(t, score, 0.1)
}

func TestCompareTexts_UnknownStrategiesFailLoudly(t *testing.T) {
	t.Parallel()

	c := NewComparator()
	_, err := c.CompareTexts(context.Background(), "a b", "a b", MethodTFIDF, Aggregation("mode"))
	require.ErrorIs(t, err, ErrUndefinedAggregation)

	_, err = c.CompareTexts(context.Background(), "a b", "a b", MethodEmbeddings, AggregateMax)
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCompareTexts_EmptyTextScoresZero(t *testing.T) {
	t.Parallel()

	score, err := NewComparator().CompareTexts(context.Background(), "", sampleText, MethodTFIDF, AggregateMax)
	require.NoError(t, err)
	require.Zero(t, score)
}

func TestCompareTexts_EmbeddingsBackend(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{vectors: map[string][]float64{
		"alpha": {1, 0},
		"beta":  {0, 1},
	}}
	c := NewComparator(WithBackend(MethodEmbeddings, NewEmbeddings(provider)))

	score, err := c.CompareTexts(context.Background(), "alpha", "alpha", MethodEmbeddings, AggregateMax)
	require.NoError(t, err)
	require.InDelta(t, 1.0, score, 1e-9)

	score, err = c.CompareTexts(context.Background(), "alpha", "beta", MethodEmbeddings, AggregateMax)
	require.NoError(t, err)
	require.InDelta(t, 0.0, score, 1e-9)
}

func TestCompareTexts_EmbeddingsFailurePropagates(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("connection refused")}
	c := NewComparator(WithBackend(MethodEmbeddings, NewEmbeddings(provider)))

	_, err := c.CompareTexts(context.Background(), "alpha", "beta", MethodEmbeddings, AggregateMax)
	require.ErrorIs(t, err, seo.ErrComparatorBackend)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	m, err := ParseMethod("TF-IDF")
	require.NoError(t, err)
	require.Equal(t, MethodTFIDF, m)

	_, err = ParseMethod("bm25")
	require.ErrorIs(t, err, ErrUnknownMethod)
}

type fakeProvider struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vectors[t])
	}
	return out, nil
}
