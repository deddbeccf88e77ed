// Package vecmath holds the small set of dense-vector helpers shared by the
// generator and the matcher. All accumulation happens in float64.
package vecmath

import (
	"errors"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors of different length are combined.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned when a vector has no direction.
	ErrZeroVector = errors.New("zero-norm vector")
)

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Mean returns the elementwise mean of a and b.
func Mean(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, ErrDimensionMismatch
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32((float64(a[i]) + float64(b[i])) / 2)
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped to [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	sim := dot / math.Sqrt(normA*normB)
	if math.IsNaN(sim) {
		return 0, ErrZeroVector
	}
	return Clamp(sim, -1, 1), nil
}

// CosineDistance returns 1 - cosine similarity, in [0, 2].
func CosineDistance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return Clamp(1-sim, 0, 2), nil
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
