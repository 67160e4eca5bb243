package relevance

import "math"

// Matrix is a dense row-major similarity matrix.
type Matrix [][]float64

// Flatten returns every cell in row order.
func (m Matrix) Flatten() []float64 {
	var out []float64
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-length or mismatched vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineMatrix pairs every row vector of a with every row vector of b.
func cosineMatrix(a, b [][]float64) Matrix {
	m := make(Matrix, len(a))
	for i := range a {
		m[i] = make([]float64, len(b))
		for j := range b {
			m[i][j] = CosineSimilarity(a[i], b[j])
		}
	}
	return m
}
