package vectorstore

import "math"

// UndefinedDistance is returned by Euclidean when the distance is undefined.
const UndefinedDistance = math.MaxFloat64

// Cosine computes cosine similarity over the common prefix of u and v.
// Returns 0 when either vector has zero magnitude.
func Cosine(u, v []float64) float64 {
	n := len(u)
	if len(v) < n {
		n = len(v)
	}
	if n == 0 {
		return 0
	}

	var dot, uu, vv float64
	for i := 0; i < n; i++ {
		dot += u[i] * v[i]
		uu += u[i] * u[i]
		vv += v[i] * v[i]
	}
	if uu == 0 || vv == 0 {
		return 0
	}
	return dot / (math.Sqrt(uu) * math.Sqrt(vv))
}

// Euclidean computes the distance over the common prefix of u and v.
// Returns UndefinedDistance when there is no common prefix.
func Euclidean(u, v []float64) float64 {
	n := len(u)
	if len(v) < n {
		n = len(v)
	}
	if n == 0 {
		return UndefinedDistance
	}

	var sum float64
	for i := 0; i < n; i++ {
		d := u[i] - v[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// euclideanSimilarity converts a distance into a [0,1] similarity.
func euclideanSimilarity(distance float64) float64 {
	if distance == UndefinedDistance {
		return 0
	}
	return math.Exp(-distance)
}
