package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/netip"
)

// -------------------------------------------------------------------------
// Parameters and Settings
// -------------------------------------------------------------------------

// Params are the four positional startup parameters.
type Params struct {
	// Seed seeds the pseudorandom stream.
	Seed int64 `yaml:"seed"`

	// IPVersion is 4 or 6.
	IPVersion int `yaml:"ip_version"`

	// AddrMax is the exclusive upper bound on source set cardinality.
	AddrMax int `yaml:"addrmax"`

	// NumOps is the number of accepted deltas to emit.
	NumOps int `yaml:"numops"`
}

// Startup errors.
var (
	// ErrInvalidIPVersion indicates an IP version other than 4 or 6.
	ErrInvalidIPVersion = errors.New("ipver must be 4 or 6")

	// ErrInvalidAddrMax indicates a non-positive addrmax.
	ErrInvalidAddrMax = errors.New("addrmax must be positive")

	// ErrInvalidNumOps indicates a non-positive numops.
	ErrInvalidNumOps = errors.New("numops must be positive")

	// ErrInvalidSettings indicates unusable generator settings.
	ErrInvalidSettings = errors.New("invalid generator settings")

	// ErrAttemptsExhausted indicates that no acceptable delta was found for
	// a step within Settings.MaxAttempts. This is a configuration error:
	// addrmax is too small for the length and re-selection distributions.
	ErrAttemptsExhausted = errors.New("delta attempts exhausted")
)

// Validate checks the startup parameters.
func (p Params) Validate() error {
	if p.IPVersion != 4 && p.IPVersion != 6 {
		return fmt.Errorf("%w: got %d", ErrInvalidIPVersion, p.IPVersion)
	}
	if p.AddrMax < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidAddrMax, p.AddrMax)
	}
	if p.NumOps < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidNumOps, p.NumOps)
	}
	return nil
}

// Settings tune the generator distributions. The zero value is not usable;
// start from DefaultSettings.
type Settings struct {
	// MaxAttempts bounds the attempts per accepted step.
	MaxAttempts int

	// AbsoluteProbability is the chance a step after the first is Absolute.
	AbsoluteProbability float64

	// ReselectProbability is the chance an Absolute or Additive candidate
	// re-selects an existing address instead of synthesizing one.
	ReselectProbability float64

	// SubtractReselectProbability is the same chance for Subtractive
	// candidates.
	SubtractReselectProbability float64

	// IPv4 and IPv6 are the base networks per IP version.
	IPv4 Network
	IPv6 Network

	// Label is the device label echoed in oracle lines.
	Label string
}

// DefaultSettings returns the reference distribution parameters.
func DefaultSettings() Settings {
	return Settings{
		MaxAttempts:                 10000,
		AbsoluteProbability:         0.2,
		ReselectProbability:         0.4,
		SubtractReselectProbability: 0.6,
		IPv4:                        DefaultIPv4Network(),
		IPv6:                        DefaultIPv6Network(),
		Label:                       DefaultLabel,
	}
}

// Validate checks the settings for values the generator cannot use.
func (s Settings) Validate() error {
	if s.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidSettings, s.MaxAttempts)
	}
	probs := []struct {
		name string
		p    float64
	}{
		{"absolute probability", s.AbsoluteProbability},
		{"reselect probability", s.ReselectProbability},
		{"subtractive reselect probability", s.SubtractReselectProbability},
	}
	for _, pr := range probs {
		if pr.p < 0 || pr.p > 1 {
			return fmt.Errorf("%w: %s %v outside [0, 1]", ErrInvalidSettings, pr.name, pr.p)
		}
	}
	if err := s.IPv4.Validate(); err != nil || s.IPv4.Version() != 4 {
		return fmt.Errorf("%w: ipv4 network %s: %w", ErrInvalidSettings, s.IPv4.Prefix, errOrFamily(err))
	}
	if err := s.IPv6.Validate(); err != nil || s.IPv6.Version() != 6 {
		return fmt.Errorf("%w: ipv6 network %s: %w", ErrInvalidSettings, s.IPv6.Prefix, errOrFamily(err))
	}
	return nil
}

var errWrongFamily = errors.New("wrong address family")

func errOrFamily(err error) error {
	if err != nil {
		return err
	}
	return errWrongFamily
}

// -------------------------------------------------------------------------
// Metrics
// -------------------------------------------------------------------------

// MetricsReporter receives generator counters. Implementations must be safe
// for concurrent use when shared between generators.
type MetricsReporter interface {
	IncSteps(kind string)
	IncRejected(kind, reason string)
	IncSynthesized()
	SetSourceSetSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) IncSteps(string)            {}
func (noopMetrics) IncRejected(string, string) {}
func (noopMetrics) IncSynthesized()            {}
func (noopMetrics) SetSourceSetSize(int)       {}

// -------------------------------------------------------------------------
// Generator
// -------------------------------------------------------------------------

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger. Rejected attempts are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the MetricsReporter. If mr is nil, a no-op reporter is
// used.
func WithMetrics(mr MetricsReporter) Option {
	return func(g *Generator) {
		if mr != nil {
			g.metrics = mr
		}
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(g *Generator) {
		g.settings = s
	}
}

// Generator owns all state of one fixture generation: the pseudorandom
// stream, the tracker, the synthesizer chain and the step counter.
// Generators share nothing and may run in parallel; a single Generator is
// not safe for concurrent use.
type Generator struct {
	params   Params
	settings Settings
	network  Network

	rng     *RNG
	tracker Tracker
	prev    netip.Addr
	step    int

	attempts int
	rejected map[RejectReason]int

	logger  *slog.Logger
	metrics MetricsReporter
}

// Summary describes a completed generation.
type Summary struct {
	Steps    int                  `yaml:"steps"`
	Attempts int                  `yaml:"attempts"`
	Rejected map[RejectReason]int `yaml:"rejected,omitempty"`
	Final    int                  `yaml:"final_size"`
}

// New validates params and settings and creates a Generator.
func New(params Params, opts ...Option) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		params:   params,
		settings: DefaultSettings(),
		rng:      NewRNG(params.Seed),
		rejected: make(map[RejectReason]int),
		logger:   slog.New(slog.DiscardHandler),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.settings.Validate(); err != nil {
		return nil, err
	}

	g.network = g.settings.IPv4
	if params.IPVersion == 6 {
		g.network = g.settings.IPv6
	}
	g.network.Prefix = g.network.Prefix.Masked()

	g.logger = g.logger.With(
		slog.String("component", "fixture.generator"),
		slog.Int64("seed", params.Seed),
		slog.Int("ipver", params.IPVersion),
	)

	return g, nil
}

// Network returns the base network addresses are synthesized in.
func (g *Generator) Network() Network {
	return g.network
}

// Sources returns a copy of the tracker's current source set.
func (g *Generator) Sources() []netip.Addr {
	return g.tracker.Sources()
}

// Step returns the number of accepted deltas so far.
func (g *Generator) Step() int {
	return g.step
}

// Next produces the next accepted delta and applies it to the tracker.
// Rejected attempts are discarded without output and retried with fresh
// randomness, up to Settings.MaxAttempts.
func (g *Generator) Next() (Delta, error) {
	for range g.settings.MaxAttempts {
		g.attempts++

		kind := selectKind(g.rng, g.step, g.settings.AbsoluteProbability)
		d, reason := g.build(kind)
		if reason != "" {
			g.rejected[reason]++
			g.metrics.IncRejected(kind.String(), string(reason))
			g.logger.Debug("delta rejected",
				slog.Int("step", g.step),
				slog.String("kind", kind.String()),
				slog.String("reason", string(reason)),
				slog.Int("len", len(d.Addrs)),
			)
			continue
		}

		g.tracker.Apply(d)
		g.step++
		g.metrics.IncSteps(kind.String())
		g.metrics.SetSourceSetSize(g.tracker.Len())
		return d, nil
	}

	return Delta{}, fmt.Errorf("step %d after %d attempts (addrmax %d): %w",
		g.step, g.settings.MaxAttempts, g.params.AddrMax, ErrAttemptsExhausted)
}

// Run generates NumOps accepted deltas onto primary and oracle, then the
// termination pair. ctx is checked between steps.
func (g *Generator) Run(ctx context.Context, primary, oracle io.Writer) (Summary, error) {
	ser := NewSerializer(primary, oracle, g.settings.Label)

	for g.step < g.params.NumOps {
		if err := ctx.Err(); err != nil {
			return g.summary(), fmt.Errorf("generate step %d: %w", g.step, err)
		}

		d, err := g.Next()
		if err != nil {
			return g.summary(), err
		}

		if err := ser.WriteDelta(d, g.tracker.sources); err != nil {
			return g.summary(), fmt.Errorf("write step %d: %w", g.step, err)
		}
	}

	if err := ser.Terminate(); err != nil {
		return g.summary(), fmt.Errorf("write termination: %w", err)
	}

	s := g.summary()
	g.logger.Info("fixture generated",
		slog.Int("steps", s.Steps),
		slog.Int("attempts", s.Attempts),
		slog.Int("final_size", s.Final),
	)
	return s, nil
}

func (g *Generator) summary() Summary {
	return Summary{
		Steps:    g.step,
		Attempts: g.attempts,
		Rejected: maps.Clone(g.rejected),
		Final:    g.tracker.Len(),
	}
}
