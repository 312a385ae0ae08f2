package embedding

import (
	"math"
	"strings"
)

// Sanitize normalizes text before embedding: trim, collapse runs of
// whitespace, and truncate to maxChars. Two inputs that sanitize to the same
// string embed identically.
func Sanitize(text string, maxChars int) string {
	out := strings.Join(strings.Fields(text), " ")
	if maxChars > 0 && len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}

// FallbackVector derives a deterministic unit-norm vector from the input's
// character codes. It carries no semantic meaning; it exists so similarity
// search degrades instead of failing when the provider is down.
func FallbackVector(text string, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	vec := make([]float64, dim)
	if text == "" {
		vec[0] = 1
		return vec
	}

	for i, r := range text {
		idx := i % dim
		// Spread character information across the vector with a position-mixed
		// transform so anagrams land on different points.
		vec[idx] += math.Sin(float64(r)*0.1 + float64(i)*0.01)
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
