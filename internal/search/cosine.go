package search

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
//
// It returns exactly 0 when the vectors have different lengths or when either
// has zero magnitude. The dimension guard protects against records embedded
// by an incompatible model version; such records simply never rank.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	magnitude := math.Sqrt(normA) * math.Sqrt(normB)
	if magnitude == 0 {
		return 0
	}
	return dot / magnitude
}
