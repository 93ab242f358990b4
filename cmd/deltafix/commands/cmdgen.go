package commands

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/deltafix/internal/cmdgen"
)

// --- addrlist ---

func addrlistCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "addrlist <ipver> <numaddrs>",
		Short: "Print a comma-joined list of fixed addresses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ipver, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: ipver %q: %w", errInvalidArgument, args[0], err)
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: numaddrs %q: %w", errInvalidArgument, args[1], err)
			}
			return cmdgen.AddrList(cmd.OutOrStdout(), ipver, n)
		},
	}
}

// --- spew ---

func spewCmd(a *app) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "spew",
		Short: "Print the poll command padded with every whitespace combination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmdgen.Spew(ctx, cmd.OutOrStdout(), delay, a.logger)
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", cmdgen.DefaultSpewDelay, "pause between commands")

	return cmd
}
