package utils

import "errors"

// ErrDimensionMismatch is returned when two vectors differ in length.
var ErrDimensionMismatch = errors.New("vectors must have the same dimension")

// SquaredL2Distance returns the squared Euclidean distance between two vectors.
// Ranking by it matches ranking by the true L2 distance.
func SquaredL2Distance(vec1, vec2 []float32) (float32, error) {
	if len(vec1) != len(vec2) {
		return 0, ErrDimensionMismatch
	}
	var sum float32
	for i := range vec1 {
		d := vec1[i] - vec2[i]
		sum += d * d
	}
	return sum, nil
}
