package relevance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUndefinedAggregation is returned for aggregation policies that are not enumerated.
var ErrUndefinedAggregation = errors.New("undefined aggregation")

// Aggregation reduces a similarity matrix to one value.
type Aggregation string

// Supported aggregations.
const (
	AggregateMax    Aggregation = "max"
	AggregateMean   Aggregation = "mean"
	AggregateMedian Aggregation = "median"
	AggregateStd    Aggregation = "std"
)

// ParseAggregation validates a configured aggregation name.
func ParseAggregation(raw string) (Aggregation, error) {
	a := Aggregation(strings.ToLower(strings.TrimSpace(raw)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUndefinedAggregation, raw)
	}
	return a, nil
}

// Valid reports whether a is one of the enumerated policies.
func (a Aggregation) Valid() bool {
	switch a {
	case AggregateMax, AggregateMean, AggregateMedian, AggregateStd:
		return true
	default:
		return false
	}
}

// Reduce applies the policy to every cell of m. An empty matrix reduces to 0.
func (a Aggregation) Reduce(m Matrix) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUndefinedAggregation, a)
	}
	values := m.Flatten()
	if len(values) == 0 {
		return 0, nil
	}
	switch a {
	case AggregateMax:
		best := values[0]
		for _, v := range values[1:] {
			best = math.Max(best, v)
		}
		return best, nil
	case AggregateMean:
		return mean(values), nil
	case AggregateMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid], nil
		}
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	default:
		mu := mean(values)
		var sum float64
		for _, v := range values {
			sum += (v - mu) * (v - mu)
		}
		return math.Sqrt(sum / float64(len(values))), nil
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
