// Package batch generates fixtures for a range of seeds in parallel.
//
// Each seed gets its own fixture.Generator, so shards share no state but
// the optional metrics reporter. Output for seed N is written to N.cmd and
// N.oracle in the target directory, and a manifest.yaml records the
// parameters and per-seed summaries.
package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dantte-lp/deltafix/internal/fixture"
)

// ManifestName is the manifest file name inside the batch directory.
const ManifestName = "manifest.yaml"

// File suffixes for the two streams.
const (
	PrimarySuffix = ".cmd"
	OracleSuffix  = ".oracle"
)

// ErrInvalidCount indicates a non-positive seed count.
var ErrInvalidCount = errors.New("seed count must be positive")

// Spec describes a batch.
type Spec struct {
	// Dir is the output directory. It is created if missing.
	Dir string

	// FirstSeed and Count select seeds FirstSeed .. FirstSeed+Count-1.
	FirstSeed int64
	Count     int

	// IPVersion, AddrMax and NumOps apply to every seed.
	IPVersion int
	AddrMax   int
	NumOps    int

	// Jobs bounds the concurrent generators. Zero means GOMAXPROCS.
	Jobs int

	// Settings default to fixture.DefaultSettings when zero.
	Settings fixture.Settings
	Logger   *slog.Logger

	// Metrics is shared by every shard. Counters aggregate across seeds;
	// source set size is per generator and is not reported.
	Metrics fixture.MetricsReporter
}

// shardMetrics forwards counters and drops the per-generator set size,
// which has no meaning once shards share a reporter.
type shardMetrics struct {
	fixture.MetricsReporter
}

func (shardMetrics) SetSourceSetSize(int) {}

// Manifest is the content of manifest.yaml.
type Manifest struct {
	IPVersion int     `yaml:"ip_version"`
	AddrMax   int     `yaml:"addrmax"`
	NumOps    int     `yaml:"numops"`
	Label     string  `yaml:"label"`
	Base      string  `yaml:"base"`
	Entries   []Entry `yaml:"entries"`
}

// Entry describes one generated fixture.
type Entry struct {
	Seed    int64           `yaml:"seed"`
	Primary string          `yaml:"primary"`
	Oracle  string          `yaml:"oracle"`
	Summary fixture.Summary `yaml:"summary"`
}

// Run generates every seed of spec and writes the manifest. The first
// failing seed cancels the rest.
func Run(ctx context.Context, spec Spec) (*Manifest, error) {
	if spec.Count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, spec.Count)
	}
	if spec.Settings == (fixture.Settings{}) {
		spec.Settings = fixture.DefaultSettings()
	}
	if spec.Logger == nil {
		spec.Logger = slog.New(slog.DiscardHandler)
	}
	if spec.Metrics != nil {
		spec.Metrics = shardMetrics{spec.Metrics}
	}
	jobs := spec.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Validate shared parameters once before touching the filesystem.
	probe := fixture.Params{Seed: spec.FirstSeed, IPVersion: spec.IPVersion, AddrMax: spec.AddrMax, NumOps: spec.NumOps}
	gen, err := fixture.New(probe, fixture.WithSettings(spec.Settings))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch directory: %w", err)
	}

	m := &Manifest{
		IPVersion: spec.IPVersion,
		AddrMax:   spec.AddrMax,
		NumOps:    spec.NumOps,
		Label:     spec.Settings.Label,
		Base:      gen.Network().Prefix.String(),
		Entries:   make([]Entry, 0, spec.Count),
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range spec.Count {
		seed := spec.FirstSeed + int64(i)
		g.Go(func() error {
			e, err := runSeed(gCtx, spec, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			mu.Lock()
			m.Entries = append(m.Entries, e)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(m.Entries, func(a, b Entry) int {
		return cmp.Compare(a.Seed, b.Seed)
	})

	if err := writeManifest(filepath.Join(spec.Dir, ManifestName), m); err != nil {
		return nil, err
	}

	spec.Logger.Info("batch generated",
		slog.String("dir", spec.Dir),
		slog.Int("seeds", len(m.Entries)),
		slog.Int("jobs", jobs),
	)
	return m, nil
}

func runSeed(ctx context.Context, spec Spec, seed int64) (Entry, error) {
	params := fixture.Params{Seed: seed, IPVersion: spec.IPVersion, AddrMax: spec.AddrMax, NumOps: spec.NumOps}
	gen, err := fixture.New(params,
		fixture.WithSettings(spec.Settings),
		fixture.WithLogger(spec.Logger),
		fixture.WithMetrics(spec.Metrics),
	)
	if err != nil {
		return Entry{}, err
	}

	name := strconv.FormatInt(seed, 10)
	e := Entry{Seed: seed, Primary: name + PrimarySuffix, Oracle: name + OracleSuffix}

	primary, err := os.Create(filepath.Join(spec.Dir, e.Primary))
	if err != nil {
		return Entry{}, fmt.Errorf("create primary stream: %w", err)
	}
	defer primary.Close()

	oracle, err := os.Create(filepath.Join(spec.Dir, e.Oracle))
	if err != nil {
		return Entry{}, fmt.Errorf("create oracle stream: %w", err)
	}
	defer oracle.Close()

	e.Summary, err = gen.Run(ctx, primary, oracle)
	if err != nil {
		return Entry{}, err
	}

	if err := primary.Close(); err != nil {
		return Entry{}, fmt.Errorf("close primary stream: %w", err)
	}
	if err := oracle.Close(); err != nil {
		return Entry{}, fmt.Errorf("close oracle stream: %w", err)
	}
	return e, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: fixtures are not secret
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
