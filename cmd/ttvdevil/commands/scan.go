package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
	"github.com/ttvdevil/ttvdevil/pkg/stores"
	"github.com/ttvdevil/ttvdevil/pkg/system"
	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

// scanFlags override the scan options of a system file.
type scanFlags struct {
	start      float64
	end        float64
	timestep   float64
	searchStep float64
	tolerance  float64
	integrator string
	order      int
	save       bool
	parallel   int
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.start, "start", 0, "scan start in days (default from the system's t_start)")
	fs.Float64Var(&f.end, "end", 0, "scan end in days (default from the system)")
	fs.Float64Var(&f.timestep, "timestep", 0, "integrator step in days")
	fs.Float64Var(&f.searchStep, "search-step", 0, "coarse search step in days")
	fs.Float64Var(&f.tolerance, "tolerance", 0, "transit time tolerance in days")
	fs.StringVar(&f.integrator, "integrator", "", "integrator: dopri, ias15, symplectic or whfast")
	fs.IntVar(&f.order, "order", 0, "symplectic composition order (2, 4 or 6)")
	fs.BoolVar(&f.save, "save", false, "store the run in the database")
	fs.IntVarP(&f.parallel, "parallel", "p", 0, "systems scanned at once (default one per CPU)")
}

// apply overrides opts with every flag set on the command line.
func (f *scanFlags) apply(cmd *cobra.Command, opts *transit.Options) error {
	fs := cmd.Flags()
	if fs.Changed("start") {
		opts.Start = f.start
	}
	if fs.Changed("end") {
		opts.End = f.end
	}
	if fs.Changed("timestep") {
		opts.Timestep = f.timestep
	}
	if fs.Changed("search-step") {
		opts.SearchStep = f.searchStep
	}
	if fs.Changed("tolerance") {
		opts.Tolerance = f.tolerance
	}
	if fs.Changed("integrator") {
		in, err := nbody.ParseIntegrator(f.integrator)
		if err != nil {
			return err
		}
		opts.Integrator = in
	}
	if fs.Changed("order") {
		opts.Order = f.order
	}
	return nil
}

// scanResult is the outcome of one scan as printed by compute and ttv.
type scanResult struct {
	System  string          `json:"system"`
	Source  string          `json:"source"`
	RunID   string          `json:"run_id,omitempty"`
	Options transit.Options `json:"options"`
	Stats   *transit.Stats  `json:"stats"`
	Bodies  []bodyResult    `json:"bodies"`
	Error   string          `json:"error,omitempty"`
}

type bodyResult struct {
	Name      string             `json:"name"`
	Transits  []float64          `json:"transits"`
	Ephemeris *transit.Ephemeris `json:"ephemeris,omitempty"`
	TTVs      []float64          `json:"ttvs,omitempty"` // days
}

// openScanStore opens the run database when flags ask for runs to be saved.
// The returned store is nil otherwise.
func (a *app) openScanStore(ctx context.Context, flags *scanFlags) (stores.Store, error) {
	if !flags.save {
		return nil, nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// runScan scans the system described by cfg. With a store the run and its
// transits are saved, including those of a failed scan. The result is
// returned even when the scan fails part way.
func (a *app) runScan(ctx context.Context, cmd *cobra.Command, store stores.Store, cfg *system.Config, source string, flags *scanFlags) (*scanResult, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	if err := flags.apply(cmd, &opts); err != nil {
		return nil, err
	}
	bodies, err := cfg.Bodies()
	if err != nil {
		return nil, err
	}
	scanner, err := transit.NewScanner(opts)
	if err != nil {
		return nil, err
	}

	res := &scanResult{System: cfg.Name, Source: source, Options: scanner.Options()}

	if store != nil {
		encoded, err := json.Marshal(res.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		res.RunID = uuid.NewString()
		run := &stores.Run{
			ID:      res.RunID,
			System:  cfg.Name,
			Source:  source,
			Options: string(encoded),
			Status:  stores.RunStatusRunning,
		}
		if err := store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
		ctx = telemetry.WithRunContext(ctx, res.RunID, cfg.Name)
	}

	stats, scanErr := scanner.Compute(ctx, bodies)
	res.Stats = stats
	if scanErr != nil {
		res.Error = scanErr.Error()
	}

	if store != nil {
		// The scan context may already be cancelled; the outcome is still recorded.
		if err := stores.RecordScan(context.WithoutCancel(ctx), store, res.RunID, bodies, scanErr); err != nil {
			return res, err
		}
	}

	for _, b := range bodies[1:] {
		br := bodyResult{Name: b.Name, Transits: b.TransitTimes}
		if eph, err := b.Ephemeris(); err == nil {
			br.Ephemeris = &eph
			br.TTVs = b.TTVs()
		}
		res.Bodies = append(res.Bodies, br)
	}
	return res, scanErr
}
