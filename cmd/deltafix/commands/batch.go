package commands

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dantte-lp/deltafix/internal/batch"
	fixmetrics "github.com/dantte-lp/deltafix/internal/metrics"
)

func batchCmd(a *app) *cobra.Command {
	var (
		dir         string
		firstSeed   int64
		count       int
		jobs        int
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "batch <ipver> <addrmax> <numops>",
		Short: "Generate fixtures for a range of seeds in parallel",
		Long: "batch runs one independent generator per seed and writes <seed>.cmd and " +
			"<seed>.oracle plus " + batch.ManifestName + " into the output directory.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Reuse the generate parser; the seed slot is filled per shard.
			params, err := parseParams(append([]string{strconv.FormatInt(firstSeed, 10)}, args...))
			if err != nil {
				return err
			}

			settings, err := a.cfg.Settings()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			collector := fixmetrics.NewCollector(reg)

			m, err := batch.Run(cmd.Context(), batch.Spec{
				Dir:       dir,
				FirstSeed: firstSeed,
				Count:     count,
				IPVersion: params.IPVersion,
				AddrMax:   params.AddrMax,
				NumOps:    params.NumOps,
				Jobs:      jobs,
				Settings:  settings,
				Logger:    a.logger,
				Metrics:   collector,
			})
			if err != nil {
				return fmt.Errorf("batch: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d fixtures to %s\n", len(m.Entries), dir)

			if metricsFile != "" {
				return fixmetrics.WriteTextfile(metricsFile, reg)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "fixtures", "output directory")
	cmd.Flags().Int64Var(&firstSeed, "first-seed", 1, "first seed of the range")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of consecutive seeds")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "concurrent generators (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "",
		"write aggregated generator metrics in Prometheus text format to this file")

	return cmd
}
