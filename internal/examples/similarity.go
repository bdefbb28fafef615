package examples

import "math"

// cosine returns the cosine similarity of a and b. Empty, zero-norm and
// mismatched vectors score 0 with ok false; callers rank them below every
// scored pair.
func cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0, false
	}
	return sim, true
}
