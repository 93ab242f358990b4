package fixture

import (
	"math/bits"
	"math/rand/v2"
)

// pcgStream is mixed into the seed to derive the second PCG state word.
const pcgStream = 0xda3e39cb94b95bdb

// RNG is the generator's pseudorandom stream.
//
// The source is PCG-DXSM (math/rand/v2 PCG) with a fixed output sequence for
// a given seed. The distributions are implemented here on top of Uint64 so
// that the sequence of draws does not depend on runtime helpers:
//
//	Float64: top 53 bits of Uint64 scaled by 2^-53, uniform in [0, 1)
//	IntN:    Lemire multiply-shift with rejection, uniform in [0, n)
//	Coin:    IntN(2) == 1
type RNG struct {
	src *rand.PCG
}

// NewRNG creates an RNG seeded from seed.
func NewRNG(seed int64) *RNG {
	s := uint64(seed) //nolint:gosec // G115: two's complement reinterpretation is intended
	return &RNG{src: rand.NewPCG(s, s^pcgStream)}
}

// Uint64 returns the next raw 64-bit output.
func (r *RNG) Uint64() uint64 {
	return r.src.Uint64()
}

// Float64 returns a uniform value in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.src.Uint64()>>11) * 0x1.0p-53
}

// IntN returns a uniform value in [0, n). For n <= 0 it returns 0 without
// consuming randomness, so an empty range never advances the stream.
func (r *RNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}

	un := uint64(n)
	hi, lo := bits.Mul64(r.src.Uint64(), un)
	if lo < un {
		thresh := -un % un
		for lo < thresh {
			hi, lo = bits.Mul64(r.src.Uint64(), un)
		}
	}

	return int(hi) //nolint:gosec // G115: hi < n
}

// Coin returns true or false with equal probability.
func (r *RNG) Coin() bool {
	return r.IntN(2) == 1
}

// choose returns a uniformly selected element of seq. seq must be non-empty.
func choose[T any](r *RNG, seq []T) T {
	return seq[r.IntN(len(seq))]
}
