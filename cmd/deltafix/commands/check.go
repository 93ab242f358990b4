package commands

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/deltafix/internal/fixture"
	"github.com/dantte-lp/deltafix/internal/replay"
)

func checkCmd(a *app) *cobra.Command {
	var (
		addrMax int
		ipver   int
	)

	cmd := &cobra.Command{
		Use:   "check <primary-file> <oracle-file>",
		Short: "Verify that a command stream and its oracle stream agree",
		Long: "check replays the primary stream from an empty source set and verifies every " +
			"echo and source setting in the oracle stream, the termination pair, and " +
			"optionally the addrmax bound and base network membership.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := replay.Options{Label: a.cfg.Output.Label, AddrMax: addrMax}

			if ipver != 0 {
				base, err := a.basePrefix(ipver)
				if err != nil {
					return err
				}
				opts.Base = base
			}

			primary, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open primary stream: %w", err)
			}
			defer primary.Close()

			oracle, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open oracle stream: %w", err)
			}
			defer oracle.Close()

			report, err := replay.Check(primary, oracle, opts)
			if err != nil {
				return fmt.Errorf("check %s against %s: %w", args[0], args[1], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d steps (absolute %d, additive %d, subtractive %d), max set size %d\n",
				report.Steps,
				report.Kinds[fixture.Absolute],
				report.Kinds[fixture.Additive],
				report.Kinds[fixture.Subtractive],
				report.MaxSetSize,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&addrMax, "addrmax", 0,
		"require every source set to stay below this size (0 disables)")
	cmd.Flags().IntVar(&ipver, "ipver", 0,
		"require addresses to lie in the configured base network for this IP version (0 disables)")

	return cmd
}

// basePrefix returns the configured base network for ipver.
func (a *app) basePrefix(ipver int) (netip.Prefix, error) {
	settings, err := a.cfg.Settings()
	if err != nil {
		return netip.Prefix{}, err
	}

	switch ipver {
	case 4:
		return settings.IPv4.Prefix, nil
	case 6:
		return settings.IPv6.Prefix, nil
	default:
		return netip.Prefix{}, fmt.Errorf("%w: got %d", fixture.ErrInvalidIPVersion, ipver)
	}
}
