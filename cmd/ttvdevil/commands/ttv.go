package commands

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

func newTTVCommand(a *app) *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "ttv <system-file>...",
		Short: "Compute transit timing variations",
		Long: `Scan a system and print, for every planet, the least-squares linear ephemeris
of its transits and the residual of each transit against it in minutes.`,
		Example: `  # Residuals of KOI-142 b and c
  ttvdevil ttv koi142.yaml

  # As JSON, residuals in days
  ttvdevil ttv koi142.yaml --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openScanStore(ctx, &flags)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			results, err := a.scanFiles(ctx, cmd, store, args, &flags)
			if perr := a.printResults(cmd.OutOrStdout(), results, printTTVs); perr != nil {
				return perr
			}
			return err
		},
	}

	flags.register(cmd)

	return cmd
}

func printTTVs(w io.Writer, res *scanResult) {
	printHeader(w, res)

	for _, b := range res.Bodies {
		if b.Ephemeris == nil {
			fmt.Fprintf(w, "%s: %d transits, too few for an ephemeris\n\n", b.Name, len(b.Transits))
			continue
		}
		var sum, peak float64
		for _, v := range b.TTVs {
			sum += v * v
			peak = math.Max(peak, math.Abs(v))
		}
		rms := math.Sqrt(sum / float64(len(b.TTVs)))
		fmt.Fprintf(w, "%s: P = %.6f d, T0 = %.6f d, %d transits, rms %.3f min, peak %.3f min\n",
			b.Name, b.Ephemeris.Period, b.Ephemeris.T0, len(b.Transits), rms/transit.Minute, peak/transit.Minute)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  EPOCH\tTIME (d)\tLINEAR (d)\tO-C (min)")
		for i, t := range b.Transits {
			fmt.Fprintf(tw, "  %d\t%.6f\t%.6f\t%+.3f\n", i, t, b.Ephemeris.At(i), b.TTVs[i]/transit.Minute)
		}
		_ = tw.Flush()
		fmt.Fprintln(w)
	}
	printSummary(w, res)
}
