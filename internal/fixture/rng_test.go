package fixture_test

import (
	"testing"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

func TestRNGReproducible(t *testing.T) {
	t.Parallel()

	a, b := fixture.NewRNG(123), fixture.NewRNG(123)
	for i := range 100 {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d: %#x != %#x for the same seed", i, x, y)
		}
	}
}

func TestRNGSeedsDiffer(t *testing.T) {
	t.Parallel()

	a, b := fixture.NewRNG(123), fixture.NewRNG(124)
	for range 100 {
		if a.Uint64() != b.Uint64() {
			return
		}
	}
	t.Error("seeds 123 and 124 produced identical streams")
}

func TestRNGFloat64Range(t *testing.T) {
	t.Parallel()

	r := fixture.NewRNG(1)
	for i := range 10000 {
		if f := r.Float64(); f < 0 || f >= 1 {
			t.Fatalf("draw %d: Float64() = %v, want [0, 1)", i, f)
		}
	}
}

func TestRNGIntNRangeAndCoverage(t *testing.T) {
	t.Parallel()

	r := fixture.NewRNG(2)
	for _, n := range []int{1, 2, 3, 7, 10, 255} {
		seen := make(map[int]bool, n)
		for range 50 * n {
			v := r.IntN(n)
			if v < 0 || v >= n {
				t.Fatalf("IntN(%d) = %d, out of range", n, v)
			}
			seen[v] = true
		}
		if len(seen) != n {
			t.Errorf("IntN(%d) produced %d distinct values in %d draws, want %d", n, len(seen), 50*n, n)
		}
	}
}

// TestRNGIntNNonPositive verifies IntN(n <= 0) returns 0 and leaves the
// stream untouched.
func TestRNGIntNNonPositive(t *testing.T) {
	t.Parallel()

	a, b := fixture.NewRNG(3), fixture.NewRNG(3)
	if v := a.IntN(0); v != 0 {
		t.Errorf("IntN(0) = %d, want 0", v)
	}
	if v := a.IntN(-4); v != 0 {
		t.Errorf("IntN(-4) = %d, want 0", v)
	}
	if a.Uint64() != b.Uint64() {
		t.Error("IntN(n <= 0) consumed randomness")
	}
}

func TestRNGCoin(t *testing.T) {
	t.Parallel()

	r := fixture.NewRNG(4)
	heads := 0
	for range 1000 {
		if r.Coin() {
			heads++
		}
	}
	if heads < 400 || heads > 600 {
		t.Errorf("Coin() heads = %d of 1000, want about 500", heads)
	}
}
