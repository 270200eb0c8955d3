package raffle

import (
	"math"
	"math/rand/v2"
)

// RandomSource returns a uniformly distributed value in [0, 1).
type RandomSource func() float64

// DefaultRandom draws from the math/rand/v2 global generator.
func DefaultRandom() float64 {
	return rand.Float64()
}

// pickIndex maps one value of r onto [0, n) as floor(r * n).
func pickIndex(r RandomSource, n int) int {
	i := int(math.Floor(r() * float64(n)))
	// a source that strays outside [0, 1) must still land on a real participant
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
