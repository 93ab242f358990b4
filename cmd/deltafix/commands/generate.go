package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dantte-lp/deltafix/internal/fixture"
	fixmetrics "github.com/dantte-lp/deltafix/internal/metrics"
)

// errInvalidArgument is returned for positional arguments that are not
// integers.
var errInvalidArgument = errors.New("invalid argument")

// streamFlags are the output destinations shared by generate.
type streamFlags struct {
	output      string
	oracle      string
	metricsFile string
}

func generateCmd(a *app) *cobra.Command {
	var flags streamFlags

	cmd := &cobra.Command{
		Use:   "generate <seed> <ipver> <addrmax> <numops>",
		Short: "Generate a command stream and its oracle stream",
		Long: "generate writes source-list delta commands for the device on the primary stream " +
			"(stdout by default) and the expected device output on the oracle stream " +
			"(stderr by default).",
		Example: "  deltafix generate 123 4 10 25 2>expected.txt | oligocast -krvilo -fnotime -lx -g225.1.1.1",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			return a.generate(cmd, params, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "",
		"primary stream file (default stdout)")
	cmd.Flags().StringVar(&flags.oracle, "oracle", "",
		"oracle stream file (default stderr)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "",
		"write generator metrics in Prometheus text format to this file")

	return cmd
}

func (a *app) generate(cmd *cobra.Command, params fixture.Params, flags streamFlags) error {
	settings, err := a.cfg.Settings()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := fixmetrics.NewCollector(reg)

	// Validate everything before creating any output so that bad
	// parameters produce no streams.
	gen, err := fixture.New(params,
		fixture.WithSettings(settings),
		fixture.WithLogger(a.logger),
		fixture.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	primary, closePrimary, err := openStream(flags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closePrimary()

	oracle, closeOracle, err := openStream(flags.oracle, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeOracle()

	summary, err := gen.Run(cmd.Context(), primary, oracle)
	if err != nil {
		return fmt.Errorf("generate seed %d: %w", params.Seed, err)
	}

	a.logger.Debug("generation summary",
		slog.Int("steps", summary.Steps),
		slog.Int("attempts", summary.Attempts),
		slog.Int("rejected_empty", summary.Rejected[fixture.RejectEmpty]),
		slog.Int("rejected_overflow", summary.Rejected[fixture.RejectOverflow]),
	)

	if flags.metricsFile != "" {
		return fixmetrics.WriteTextfile(flags.metricsFile, reg)
	}
	return nil
}

// parseParams parses the four positional generation parameters.
func parseParams(args []string) (fixture.Params, error) {
	seed, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fixture.Params{}, fmt.Errorf("%w: seed %q: %w", errInvalidArgument, args[0], err)
	}

	ints := make([]int, 3)
	for i, name := range []string{"ipver", "addrmax", "numops"} {
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			return fixture.Params{}, fmt.Errorf("%w: %s %q: %w", errInvalidArgument, name, args[i+1], err)
		}
		ints[i] = v
	}

	p := fixture.Params{Seed: seed, IPVersion: ints[0], AddrMax: ints[1], NumOps: ints[2]}
	if err := p.Validate(); err != nil {
		return fixture.Params{}, err
	}
	return p, nil
}

// openStream opens path for writing, or returns fallback when path is
// empty or "-". The returned close function is always safe to call.
func openStream(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return fallback, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
