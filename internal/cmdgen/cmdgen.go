// Package cmdgen produces the small fixed command fixtures used next to the
// randomized delta fixtures: long address lists for size testing and
// whitespace variations of the poll command for parser testing.
package cmdgen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strconv"
	"time"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

// ErrInvalidCount indicates a negative address count.
var ErrInvalidCount = errors.New("address count must not be negative")

// ErrInvalidIPVersion indicates an IP version other than 4 or 6.
var ErrInvalidIPVersion = errors.New("ipver must be 4 or 6")

// -------------------------------------------------------------------------
// Address Lists
// -------------------------------------------------------------------------

// ListAddr returns the i-th address of the fixed address list:
// 10.2.(i%251+1).(i%241+4) for IPv4 and fdfd:fdfd::(i%65521+1):(i%65519+4)
// for IPv6. The moduli are primes so the pairs repeat only after their
// product.
func ListAddr(ipver, i int) (netip.Addr, error) {
	switch ipver {
	case 4:
		return netip.AddrFrom4([4]byte{10, 2, byte(i%251 + 1), byte(i%241 + 4)}), nil
	case 6:
		hi, lo := uint16(i%65521+1), uint16(i%65519+4) //nolint:gosec // G115: both below 65536
		return netip.AddrFrom16([16]byte{
			0xfd, 0xfd, 0xfd, 0xfd,
			12: byte(hi >> 8), 13: byte(hi),
			14: byte(lo >> 8), 15: byte(lo),
		}), nil
	default:
		return netip.Addr{}, fmt.Errorf("%w: got %d", ErrInvalidIPVersion, ipver)
	}
}

// AddrList writes one comma-joined line of n fixed addresses.
func AddrList(w io.Writer, ipver, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	addrs := make([]netip.Addr, 0, n)
	for i := range n {
		a, err := ListAddr(ipver, i)
		if err != nil {
			return err
		}
		addrs = append(addrs, a)
	}

	// An empty list is an empty line here, not the "-" sentinel.
	line := ""
	if n > 0 {
		line = fixture.FormatList(addrs)
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return fmt.Errorf("write address list: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Whitespace Spew
// -------------------------------------------------------------------------

// DefaultSpewDelay is the pause between spewed commands.
const DefaultSpewDelay = 200 * time.Millisecond

// spewSpace lists the whitespace placed around the poll command.
var spewSpace = []string{"", " ", "\t", "\r", "\v", "\f", "   ", "\t \t"}

// SpewLines returns every whitespace-padded poll command followed by the
// termination command.
func SpewLines() []string {
	lines := make([]string, 0, len(spewSpace)*len(spewSpace)+1)
	for _, w1 := range spewSpace {
		for _, w2 := range spewSpace {
			lines = append(lines, w1+fixture.PollCommand+w2)
		}
	}
	return append(lines, fixture.TerminateCommand)
}

// Spew writes SpewLines to w, flushing each line and pausing delay after
// every padded command. Each command is logged in quoted form.
func Spew(ctx context.Context, w io.Writer, delay time.Duration, logger *slog.Logger) error {
	bw := bufio.NewWriter(w)
	lines := SpewLines()

	for i, line := range lines {
		last := i == len(lines)-1
		if !last {
			logger.Info("sending command", slog.String("command", strconv.Quote(line)))
		}

		if _, err := fmt.Fprintln(bw, line); err != nil {
			return fmt.Errorf("write spew line %d: %w", i, err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush spew line %d: %w", i, err)
		}

		if last || delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("spew: %w", ctx.Err())
		case <-t.C:
		}
	}
	return nil
}
