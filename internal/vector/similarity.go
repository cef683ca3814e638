// Package vector provides similarity helpers for embedding vectors.
package vector

import "math"

// SimilarityFunc scores two vectors; higher means more similar.
type SimilarityFunc func(a, b []float32) float64

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Mismatched lengths, empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := InnerProduct(a, b) / (na * nb)
	// Rounding can push identical vectors slightly past 1.
	return math.Max(-1, math.Min(1, sim))
}

// SimilarityMatrix returns the len(a) x len(b) matrix of pairwise scores.
// A nil fn means CosineSimilarity.
func SimilarityMatrix(a, b [][]float32, fn SimilarityFunc) [][]float64 {
	if fn == nil {
		fn = CosineSimilarity
	}
	m := make([][]float64, len(a))
	for i := range a {
		row := make([]float64, len(b))
		for j := range b {
			row[j] = fn(a[i], b[j])
		}
		m[i] = row
	}
	return m
}
