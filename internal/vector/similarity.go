package vector

import "math"

// SquaredL2 returns the squared Euclidean distance between a and b.
// Vectors of different length have infinite distance.
func SquaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Similarity maps a squared L2 distance to (0, 1]. It is strictly decreasing
// in distance, so ordering by similarity equals ordering by distance.
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
