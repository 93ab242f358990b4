// Package replay verifies that a primary command stream and its oracle
// stream are mutually consistent.
//
// Commands are replayed from an empty source set into a set model built on
// go4.org/netipx, independent of the generator's tracker, and the model is
// compared with every source setting the oracle declares.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strings"

	"go4.org/netipx"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

// maxLineBytes bounds a single stream line. A v6 delta of a few thousand
// addresses fits comfortably.
const maxLineBytes = 16 << 20

// Check errors. Each is wrapped with the offending line numbers.
var (
	// ErrMalformedLine indicates a line that is not a recognized command.
	ErrMalformedLine = errors.New("malformed line")

	// ErrOracleMismatch indicates an oracle line that does not echo the
	// primary command at the same position.
	ErrOracleMismatch = errors.New("oracle does not echo command")

	// ErrStateMismatch indicates a declared source setting that differs
	// from the replayed model.
	ErrStateMismatch = errors.New("oracle source setting differs from replay")

	// ErrOverflow indicates a source set that reached addrmax.
	ErrOverflow = errors.New("source set reached addrmax")

	// ErrOutsideBase indicates an address outside the base network.
	ErrOutsideBase = errors.New("address outside base network")

	// ErrMissingTermination indicates a stream that ends without ".x".
	ErrMissingTermination = errors.New("missing termination command")

	// ErrTrailingOutput indicates lines after the termination pair.
	ErrTrailingOutput = errors.New("output after termination")
)

// Options tune the checks. Zero values disable the optional checks.
type Options struct {
	// Label is the device label in oracle lines. Empty means
	// fixture.DefaultLabel.
	Label string

	// AddrMax, when positive, requires every replayed set to stay below it.
	AddrMax int

	// Base, when valid, requires every command address to lie within it.
	Base netip.Prefix
}

// Report summarizes a successful check.
type Report struct {
	// Steps is the number of delta commands replayed.
	Steps int

	// Kinds counts steps per kind.
	Kinds map[fixture.Kind]int

	// MaxSetSize is the largest replayed source set.
	MaxSetSize int
}

// Check reads both streams to the end and verifies them.
func Check(primary, oracle io.Reader, opts Options) (Report, error) {
	if opts.Label == "" {
		opts.Label = fixture.DefaultLabel
	}

	p, err := readLines(primary)
	if err != nil {
		return Report{}, fmt.Errorf("read primary stream: %w", err)
	}
	o, err := readLines(oracle)
	if err != nil {
		return Report{}, fmt.Errorf("read oracle stream: %w", err)
	}

	c := &checker{
		opts:    opts,
		primary: p,
		oracle:  o,
		set:     &netipx.IPSet{},
		report:  Report{Kinds: make(map[fixture.Kind]int)},
	}
	if err := c.run(); err != nil {
		return c.report, err
	}
	return c.report, nil
}

// ParseCommand parses a primary-stream source-list command such as
// "-E+10.0.0.1,10.0.0.2".
func ParseCommand(line string) (fixture.Delta, error) {
	rest, ok := strings.CutPrefix(line, fixture.CommandPrefix)
	if !ok || rest == "" {
		return fixture.Delta{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	d := fixture.Delta{Kind: fixture.Absolute}
	switch {
	case rest == fixture.EmptyList:
	case rest[0] == '+':
		d.Kind, rest = fixture.Additive, rest[1:]
	case rest[0] == '-':
		d.Kind, rest = fixture.Subtractive, rest[1:]
	}

	addrs, err := fixture.ParseList(rest)
	if err != nil {
		return fixture.Delta{}, fmt.Errorf("%w: %q: %w", ErrMalformedLine, line, err)
	}
	d.Addrs = addrs
	return d, nil
}

// -------------------------------------------------------------------------
// Checker
// -------------------------------------------------------------------------

type checker struct {
	opts    Options
	primary []string
	oracle  []string
	pi, oi  int

	set    *netipx.IPSet
	report Report
}

func (c *checker) run() error {
	for {
		line, ok := c.nextPrimary()
		if !ok {
			return fmt.Errorf("primary line %d: %w", c.pi+1, ErrMissingTermination)
		}

		if line == fixture.TerminateCommand {
			if err := c.expectEcho(line); err != nil {
				return err
			}
			if c.pi < len(c.primary) || c.oi < len(c.oracle) {
				return fmt.Errorf("primary line %d, oracle line %d: %w", c.pi+1, c.oi+1, ErrTrailingOutput)
			}
			return nil
		}

		if err := c.step(line); err != nil {
			return err
		}
	}
}

// step handles one delta command, its poll, and the declared setting.
func (c *checker) step(line string) error {
	d, err := ParseCommand(line)
	if err != nil {
		return fmt.Errorf("primary line %d: %w", c.pi, err)
	}
	if err := c.expectEcho(line); err != nil {
		return err
	}
	if err := c.checkBase(d.Addrs); err != nil {
		return fmt.Errorf("primary line %d: %w", c.pi, err)
	}

	poll, ok := c.nextPrimary()
	if !ok {
		return fmt.Errorf("primary line %d: %w", c.pi+1, ErrMissingTermination)
	}
	if poll != fixture.PollCommand {
		return fmt.Errorf("primary line %d: %w: want %q, got %q", c.pi, ErrMalformedLine, fixture.PollCommand, poll)
	}
	if err := c.expectEcho(poll); err != nil {
		return err
	}

	if err := c.apply(d); err != nil {
		return fmt.Errorf("primary line %d: %w", c.pi-1, err)
	}
	want := enumerate(c.set)

	got, err := c.nextSetting()
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("oracle line %d: %w: declared %s, replayed %s",
			c.oi, ErrStateMismatch, fixture.FormatList(got), fixture.FormatList(want))
	}
	if c.opts.AddrMax > 0 && len(want) >= c.opts.AddrMax {
		return fmt.Errorf("oracle line %d: %w: %d >= %d", c.oi, ErrOverflow, len(want), c.opts.AddrMax)
	}

	c.report.Steps++
	c.report.Kinds[d.Kind]++
	c.report.MaxSetSize = max(c.report.MaxSetSize, len(want))
	return nil
}

// apply replays d into the set model.
func (c *checker) apply(d fixture.Delta) error {
	var b netipx.IPSetBuilder
	if d.Kind != fixture.Absolute {
		b.AddSet(c.set)
	}
	for _, a := range d.Addrs {
		if d.Kind == fixture.Subtractive {
			b.Remove(a)
		} else {
			b.Add(a)
		}
	}

	set, err := b.IPSet()
	if err != nil {
		return fmt.Errorf("build replay set: %w", err)
	}
	c.set = set
	return nil
}

func (c *checker) checkBase(addrs []netip.Addr) error {
	if !c.opts.Base.IsValid() {
		return nil
	}
	for _, a := range addrs {
		if !c.opts.Base.Contains(a) {
			return fmt.Errorf("%w: %s not in %s", ErrOutsideBase, a, c.opts.Base)
		}
	}
	return nil
}

func (c *checker) nextPrimary() (string, bool) {
	if c.pi >= len(c.primary) {
		return "", false
	}
	c.pi++
	return c.primary[c.pi-1], true
}

func (c *checker) nextOracle() (string, bool) {
	if c.oi >= len(c.oracle) {
		return "", false
	}
	c.oi++
	return c.oracle[c.oi-1], true
}

// expectEcho consumes the oracle line that must echo cmd.
func (c *checker) expectEcho(cmd string) error {
	want := fixture.OracleEcho(c.opts.Label, cmd)
	got, ok := c.nextOracle()
	if !ok {
		return fmt.Errorf("oracle line %d: %w: want %q, got end of stream", c.oi+1, ErrOracleMismatch, want)
	}
	if got != want {
		return fmt.Errorf("oracle line %d: %w: want %q, got %q", c.oi, ErrOracleMismatch, want, got)
	}
	return nil
}

// nextSetting consumes and parses a source setting oracle line.
func (c *checker) nextSetting() ([]netip.Addr, error) {
	prefix := strings.TrimSuffix(fixture.OracleSetting(c.opts.Label, nil), fixture.EmptyList)

	line, ok := c.nextOracle()
	if !ok {
		return nil, fmt.Errorf("oracle line %d: %w: want source setting, got end of stream", c.oi+1, ErrOracleMismatch)
	}
	list, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return nil, fmt.Errorf("oracle line %d: %w: want source setting, got %q", c.oi, ErrOracleMismatch, line)
	}

	addrs, err := fixture.ParseList(list)
	if err != nil {
		return nil, fmt.Errorf("oracle line %d: %w: %w", c.oi, ErrMalformedLine, err)
	}
	return addrs, nil
}

// enumerate lists every address of set in ascending order.
func enumerate(set *netipx.IPSet) []netip.Addr {
	var out []netip.Addr
	for _, r := range set.Ranges() {
		for a := r.From(); ; a = a.Next() {
			out = append(out, a)
			if a == r.To() {
				break
			}
		}
	}
	return out
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
