package fixture

import (
	"net/netip"
	"slices"
)

// Tracker holds the authoritative source set. Every mutation computes the
// complete new set before swapping it in, so no partially applied delta is
// ever observable.
type Tracker struct {
	sources []netip.Addr
}

// Sources returns a copy of the current source set in ascending order.
func (t *Tracker) Sources() []netip.Addr {
	return slices.Clone(t.sources)
}

// Len returns the current source set cardinality.
func (t *Tracker) Len() int {
	return len(t.sources)
}

// Apply applies d to the source set.
func (t *Tracker) Apply(d Delta) {
	switch d.Kind {
	case Absolute:
		t.sources = sortedUnique(d.Addrs)
	case Additive:
		t.sources = t.union(d.Addrs)
	case Subtractive:
		t.sources = t.subtract(d.Addrs)
	}
}

// UnionSize returns the cardinality the source set would have after an
// Additive delta of addrs, without modifying it.
func (t *Tracker) UnionSize(addrs []netip.Addr) int {
	n := len(t.sources)
	seen := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		if _, found := slices.BinarySearchFunc(t.sources, a, netip.Addr.Compare); !found {
			n++
		}
	}
	return n
}

func (t *Tracker) union(addrs []netip.Addr) []netip.Addr {
	all := make([]netip.Addr, 0, len(t.sources)+len(addrs))
	all = append(all, t.sources...)
	all = append(all, addrs...)
	return sortedUnique(all)
}

func (t *Tracker) subtract(addrs []netip.Addr) []netip.Addr {
	drop := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		drop[a] = struct{}{}
	}

	kept := make([]netip.Addr, 0, len(t.sources))
	for _, s := range t.sources {
		if _, ok := drop[s]; !ok {
			kept = append(kept, s)
		}
	}
	return kept
}

// sortedUnique returns a sorted, deduplicated copy of addrs.
func sortedUnique(addrs []netip.Addr) []netip.Addr {
	out := slices.Clone(addrs)
	slices.SortFunc(out, netip.Addr.Compare)
	return slices.Compact(out)
}
