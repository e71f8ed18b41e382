package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/batch"
	"github.com/ttvdevil/ttvdevil/pkg/stores"
	"github.com/ttvdevil/ttvdevil/pkg/system"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

func newComputeCommand(a *app) *cobra.Command {
	var (
		flags scanFlags
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "compute <system-file>...",
		Short: "Compute transit times of a system",
		Long: `Integrate a planetary system and print the mid-transit time of every planet.

Scan settings come from the system file; the flags below override them for one run.
Several files are scanned in parallel and reported in the order given.
With --watch the scan of a single file is repeated every time it changes.`,
		Example: `  # Scan the system in koi142.yaml
  ttvdevil compute koi142.yaml

  # Scan a shorter window with a finer tolerance and keep the run
  ttvdevil compute koi142.yaml --end 500 --tolerance 1e-6 --save

  # Scan a directory of systems, four at a time
  ttvdevil compute systems/*.yaml --parallel 4 --save

  # Re-run on every edit
  ttvdevil compute system.cue --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if watch && len(args) > 1 {
				return fmt.Errorf("--watch takes a single system file, got %d", len(args))
			}

			store, err := a.openScanStore(ctx, &flags)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			if watch {
				path := args[0]
				return system.Watch(ctx, path, func(cfg *system.Config, err error) {
					if err != nil {
						log.Error().Err(err).Str("path", path).Msg("Failed to load system")
						return
					}
					res, err := a.runScan(ctx, cmd, store, cfg, path, &flags)
					if res != nil {
						if perr := a.printResults(cmd.OutOrStdout(), []*scanResult{res}, printTransits); perr != nil {
							log.Error().Err(perr).Msg("Failed to print results")
						}
					}
					if err != nil {
						log.Error().Err(err).Str("system", cfg.Name).Msg("Scan failed")
					}
				})
			}

			results, err := a.scanFiles(ctx, cmd, store, args, &flags)
			if perr := a.printResults(cmd.OutOrStdout(), results, printTransits); perr != nil {
				return perr
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run the scan whenever the system file changes")

	return cmd
}

// scanFiles loads and scans every path on the batch pool. Results of failed
// scans are kept when the scan got far enough to produce one. The returned
// error joins the failures of every file.
func (a *app) scanFiles(ctx context.Context, cmd *cobra.Command, store stores.Store, paths []string, flags *scanFlags) ([]*scanResult, error) {
	pool := batch.NewPool(flags.parallel)
	results := batch.Run(ctx, pool, paths, func(ctx context.Context, path string) (*scanResult, error) {
		cfg, err := system.Load(path)
		if err != nil {
			return nil, err
		}
		return a.runScan(ctx, cmd, store, cfg, path, flags)
	})

	var (
		out  []*scanResult
		errs []error
	)
	for i, r := range results {
		if r.Value != nil {
			out = append(out, r.Value)
		}
		if r.Err != nil {
			if len(paths) > 1 {
				log.Error().Err(r.Err).Str("path", paths[i]).Msg("Scan failed")
				errs = append(errs, fmt.Errorf("%s: %w", paths[i], r.Err))
			} else {
				errs = append(errs, r.Err)
			}
			continue
		}
		log.Debug().Str("path", paths[i]).Dur("duration", r.Duration).Msg("Scan finished")
	}
	return out, errors.Join(errs...)
}

// printResults writes results as JSON, a single object for one result, or
// through printOne as text.
func (a *app) printResults(w io.Writer, results []*scanResult, printOne func(io.Writer, *scanResult)) error {
	if len(results) == 0 {
		return nil
	}
	if a.jsonOutput {
		if len(results) == 1 {
			return writeJSON(w, results[0])
		}
		return writeJSON(w, results)
	}
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printOne(w, res)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHeader(w io.Writer, res *scanResult) {
	fmt.Fprintf(w, "System %s: %d planets over [%g, %g) days with %s\n",
		res.System, len(res.Bodies), res.Options.Start, res.Options.End, res.Options.Integrator)
	if res.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", res.RunID)
	}
	fmt.Fprintln(w)
}

func printTransits(w io.Writer, res *scanResult) {
	printHeader(w, res)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BODY\tEPOCH\tTIME (d)\tTTV (min)")
	for _, b := range res.Bodies {
		for i, t := range b.Transits {
			ttv := "-"
			if b.TTVs != nil {
				ttv = fmt.Sprintf("%+.3f", b.TTVs[i]/transit.Minute)
			}
			fmt.Fprintf(tw, "%s\t%d\t%.6f\t%s\n", b.Name, i, t, ttv)
		}
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	printSummary(w, res)
}

func printSummary(w io.Writer, res *scanResult) {
	total := 0
	for _, b := range res.Bodies {
		total += len(b.Transits)
	}
	if res.Stats != nil {
		fmt.Fprintf(w, "%d transits, %d search steps, %d bisections, %d integrator steps\n",
			total, res.Stats.CoarseSteps, res.Stats.Bisections, res.Stats.IntegratorSteps)
	} else {
		fmt.Fprintf(w, "%d transits\n", total)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "Scan stopped early: %s\n", res.Error)
	}
}
