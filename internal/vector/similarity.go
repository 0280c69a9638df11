// Package vector provides the embedding byte codec, cosine similarity and brute-force ranking.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different length are compared.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns dot(a,b) / (|a| * |b|), accumulated in float64.
// If either vector has zero norm the score is 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return cosine(a, L2Norm(a), b), nil
}

// cosine scores b against a query a whose norm is already known. Lengths must match.
func cosine(a []float32, normA float64, b []float32) float64 {
	var dot, nb float64
	for i := range a {
		vb := float64(b[i])
		dot += float64(a[i]) * vb
		nb += vb * vb
	}
	if normA == 0 || nb == 0 {
		return 0
	}
	// Rounding can push |score| slightly past 1 for parallel vectors.
	return math.Max(-1, math.Min(1, dot/(normA*math.Sqrt(nb))))
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
