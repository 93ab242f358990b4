package fixture

import (
	"net/netip"
)

// Delta is a requested change to the source set. Addrs keeps draw order and
// may contain duplicates; it is emitted exactly as drawn.
type Delta struct {
	Kind  Kind
	Addrs []netip.Addr
}

// RejectReason explains why an attempt was discarded.
type RejectReason string

// Reject reasons. An empty RejectReason means the attempt was accepted.
const (
	// RejectEmpty: an Additive or Subtractive delta drew no addresses.
	RejectEmpty RejectReason = "empty"

	// RejectOverflow: an Additive delta would grow the set to addrmax.
	RejectOverflow RejectReason = "overflow"
)

// -------------------------------------------------------------------------
// Delta-Set Builder
// -------------------------------------------------------------------------

// build draws one candidate delta of kind k. A non-empty reason means the
// candidate must be discarded; the tracker is never touched here.
func (g *Generator) build(k Kind) (Delta, RejectReason) {
	switch k {
	case Additive:
		return g.buildAdditive()
	case Subtractive:
		return g.buildSubtractive()
	default:
		return g.buildAbsolute(), ""
	}
}

// buildAbsolute draws a replacement list. Re-selection picks from the delta
// drawn so far. The result may be empty.
func (g *Generator) buildAbsolute() Delta {
	d := Delta{Kind: Absolute}
	for g.underBound(len(d.Addrs), g.params.AddrMax) {
		if len(d.Addrs) > 0 && g.rng.Float64() < g.settings.ReselectProbability {
			g.prev = choose(g.rng, d.Addrs)
		} else {
			g.prev = g.synthesizeNext()
		}
		d.Addrs = append(d.Addrs, g.prev)
	}
	return d
}

// buildAdditive draws a list to union into the source set. Re-selection
// picks existing members.
func (g *Generator) buildAdditive() (Delta, RejectReason) {
	d := Delta{Kind: Additive}
	sources := g.tracker.sources
	for g.underBound(len(d.Addrs), g.params.AddrMax) {
		d.Addrs = append(d.Addrs, g.candidate(sources, g.settings.ReselectProbability))
	}

	if g.tracker.UnionSize(d.Addrs) >= g.params.AddrMax {
		return d, RejectOverflow
	}
	if len(d.Addrs) == 0 {
		return d, RejectEmpty
	}
	return d, ""
}

// buildSubtractive draws a list to remove from the source set. Its length
// is a single uniform draw whose bound exceeds the set size by a quarter, so
// some deltas name absent addresses, which removal ignores.
func (g *Generator) buildSubtractive() (Delta, RejectReason) {
	d := Delta{Kind: Subtractive}
	sources := g.tracker.sources
	n := g.rng.IntN(len(sources) + len(sources)>>2 + 1)
	for range n {
		d.Addrs = append(d.Addrs, g.candidate(sources, g.settings.SubtractReselectProbability))
	}

	if len(d.Addrs) == 0 {
		return d, RejectEmpty
	}
	return d, ""
}

// underBound is the double-threshold length rule: keep going while length
// is below both of two independent draws from [0, bound). The second draw
// happens only when the first test passes. Short lists dominate, long lists
// still appear.
func (g *Generator) underBound(length, bound int) bool {
	return length < g.rng.IntN(bound) && length < g.rng.IntN(bound)
}

// candidate re-selects a member of pool with probability p when pool is
// non-empty, otherwise synthesizes a fresh address.
func (g *Generator) candidate(pool []netip.Addr, p float64) netip.Addr {
	if len(pool) > 0 && g.rng.Float64() < p {
		g.prev = choose(g.rng, pool)
	} else {
		g.prev = g.synthesizeNext()
	}
	return g.prev
}

// synthesizeNext chains a fresh address off the previous candidate with the
// network's fixed density.
func (g *Generator) synthesizeNext() netip.Addr {
	g.metrics.IncSynthesized()
	return synthesize(g.rng, g.network, g.prev, g.network.Density)
}
