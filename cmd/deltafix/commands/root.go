// Package commands implements the deltafix CLI commands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/deltafix/internal/config"
	appversion "github.com/dantte-lp/deltafix/internal/version"
)

// app carries state shared by all subcommands, initialized in
// PersistentPreRunE.
type app struct {
	// configPath is the optional YAML configuration file.
	configPath string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the top-level cobra command for deltafix.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "deltafix",
		Short: "Regression fixture generator for multicast source filtering",
		Long: "deltafix generates randomized source-list delta commands together with an " +
			"oracle stream of the expected device state, and checks such stream pairs.",
		Version: appversion.Short("deltafix"),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
		// Silence cobra's built-in usage/error printing so we control it.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"path to configuration file (YAML)")

	root.AddCommand(generateCmd(a))
	root.AddCommand(checkCmd(a))
	root.AddCommand(batchCmd(a))
	root.AddCommand(addrlistCmd(a))
	root.AddCommand(spewCmd(a))
	root.AddCommand(versionCmd())

	return root
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger creates a structured logger writing to w.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
