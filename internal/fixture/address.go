package fixture

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// -------------------------------------------------------------------------
// Base Network
// -------------------------------------------------------------------------

// Network describes a base network: synthesized addresses keep the prefix
// bits of Prefix and vary only the host bits.
type Network struct {
	// Prefix is the base network. Its address is masked on use.
	Prefix netip.Prefix

	// Density is the probability that synthesis flips each host bit.
	Density float64
}

// Errors returned by Network.Validate.
var (
	// ErrInvalidPrefix indicates the base prefix is unset.
	ErrInvalidPrefix = errors.New("base network prefix is invalid")

	// ErrNoHostBits indicates the base prefix leaves no host bits to vary.
	ErrNoHostBits = errors.New("base network prefix has no host bits")

	// ErrInvalidDensity indicates Density is outside [0, 1).
	ErrInvalidDensity = errors.New("mutation density must be in [0, 1)")
)

// DefaultIPv4Network returns 10.0.0.0/8 with a density of 0.2.
func DefaultIPv4Network() Network {
	return Network{Prefix: netip.MustParsePrefix("10.0.0.0/8"), Density: 0.2}
}

// DefaultIPv6Network returns fd05:aaaa::/32 with a density of 0.05.
// The lower density keeps addresses in the 96-bit host field clustered in a
// common neighborhood.
func DefaultIPv6Network() Network {
	return Network{Prefix: netip.MustParsePrefix("fd05:aaaa::/32"), Density: 0.05}
}

// Validate checks that the network can host synthesized addresses.
func (n Network) Validate() error {
	if !n.Prefix.IsValid() {
		return ErrInvalidPrefix
	}
	if n.HostBits() <= 0 {
		return fmt.Errorf("%s: %w", n.Prefix, ErrNoHostBits)
	}
	if n.Density < 0 || n.Density >= 1 {
		return fmt.Errorf("%v: %w", n.Density, ErrInvalidDensity)
	}
	return nil
}

// Base returns the masked base network address.
func (n Network) Base() netip.Addr {
	return n.Prefix.Masked().Addr()
}

// HostBits returns the number of low-order bits synthesis may change.
func (n Network) HostBits() int {
	return n.Prefix.Addr().BitLen() - n.Prefix.Bits()
}

// Version returns 4 or 6.
func (n Network) Version() int {
	if n.Prefix.Addr().Is4() {
		return 4
	}
	return 6
}

// -------------------------------------------------------------------------
// Address Synthesizer
// -------------------------------------------------------------------------

// synthesize derives a new address from prev by flipping each host bit
// independently with probability density. An invalid prev starts from the
// base network address. Prefix bits are never touched.
func synthesize(r *RNG, n Network, prev netip.Addr, density float64) netip.Addr {
	if !prev.IsValid() {
		prev = n.Base()
	}

	b := prev.AsSlice()
	for i := range n.HostBits() {
		if r.Float64() < density {
			b[len(b)-1-i/8] ^= 1 << (i % 8)
		}
	}

	a, _ := netip.AddrFromSlice(b)
	return a
}

// -------------------------------------------------------------------------
// Text Encoding
// -------------------------------------------------------------------------

// EmptyList is the text form of an empty address list.
const EmptyList = "-"

// FormatList renders addrs comma-joined, or EmptyList when addrs is empty.
func FormatList(addrs []netip.Addr) string {
	if len(addrs) == 0 {
		return EmptyList
	}

	var sb strings.Builder
	for i, a := range addrs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	return sb.String()
}

// ErrMalformedAddress indicates an address list entry failed to parse.
var ErrMalformedAddress = errors.New("malformed address")

// ParseList is the inverse of FormatList.
func ParseList(s string) ([]netip.Addr, error) {
	if s == EmptyList {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	addrs := make([]netip.Addr, 0, len(parts))
	for _, p := range parts {
		a, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrMalformedAddress, p, err)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}
