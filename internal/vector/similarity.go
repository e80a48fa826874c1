package vector

// SquaredL2 returns the squared Euclidean distance between a and b.
// Callers must pass vectors of equal length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
