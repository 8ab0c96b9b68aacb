// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import "math"

// Cosine returns dot(a,b)/(|a||b|) accumulated in float64. It returns 0
// when either vector has zero magnitude, when the vectors are empty, or
// when their lengths differ. The result is clamped to [-1, 1].
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}
