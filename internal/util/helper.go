package util

import "time"

// CloneSlice returns a copy of src with length cloneSize, or len(src) when cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// ClampDuration bounds d to the closed range [low, high].
// When low > high, high wins.
func ClampDuration(d, low, high time.Duration) time.Duration {
	if d < low {
		d = low
	}
	if d > high {
		d = high
	}

	return d
}
