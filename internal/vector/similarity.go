package vector

import "math"

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

// Normalized returns a unit-length copy of x. A zero vector is copied unchanged.
func Normalized(x []float32) []float32 {
	out := make([]float32, len(x))
	norm := L2Norm(x)
	if norm == 0 {
		copy(out, x)
		return out
	}
	for i, v := range x {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
