package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Saturate clamps to [0, 1].
func Saturate[T constraints.Float](f T) T {
	return Clamp(f, 0, 1)
}

func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// HalveDimension halves a buffer dimension without ever reaching zero.
func HalveDimension[T constraints.Integer](v T) T {
	if v <= 1 {
		return 1
	}
	return v / 2
}
