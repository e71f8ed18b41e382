package transit

import (
	"math"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
)

// Time units in days.
const (
	Second = 1.0 / 86400.0
	Minute = 1.0 / 1440.0
	Hour   = 1.0 / 24.0
)

// Options configures a scan.
type Options struct {
	// Start is the epoch of the initial conditions; End bounds the scan.
	// Transits are reported in [Start, End).
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Timestep is the integrator step in days.
	Timestep float64 `json:"timestep"`

	// SearchStep is the coarse step used to look for sign changes. It must be
	// well below a quarter of the shortest orbital period; a step that could
	// hide a transit fails the scan with ErrAmbiguousCrossing.
	SearchStep float64 `json:"search_step"`

	// Tolerance is the bisection tolerance on the transit time.
	Tolerance float64 `json:"tolerance"`

	// Integrator selects the integration scheme.
	Integrator nbody.Integrator `json:"integrator"`

	// Order is the symplectic composition order. Zero means 4.
	Order int `json:"order,omitempty"`

	// G is the gravitational constant. Zero means nbody.DefaultG.
	G float64 `json:"g,omitempty"`

	// RelTol is the adaptive integrator's relative tolerance. Zero means the
	// integrator default.
	RelTol float64 `json:"rel_tol,omitempty"`

	// MaxBisections caps the bisection iterations per transit. Zero derives
	// the cap from the bracket width and Tolerance.
	MaxBisections int `json:"max_bisections,omitempty"`
}

// DefaultOptions returns a 0.01 day step, a 12 hour search step and a 1e-7 day tolerance.
func DefaultOptions() Options {
	return Options{
		Timestep:   0.01,
		SearchStep: 0.5,
		Tolerance:  1e-7,
		Integrator: nbody.IntegratorDOPRI,
		Order:      4,
		G:          nbody.DefaultG,
	}
}

// Validate checks the options for range violations.
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"start":       o.Start,
		"end":         o.End,
		"timestep":    o.Timestep,
		"search step": o.SearchStep,
		"tolerance":   o.Tolerance,
		"G":           o.G,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidRange("%s must be finite, got %g", name, v)
		}
	}
	if o.End < o.Start {
		return invalidRange("end %g is before start %g", o.End, o.Start)
	}
	if o.Timestep <= 0 {
		return invalidRange("timestep must be positive, got %g", o.Timestep)
	}
	if o.SearchStep <= 0 {
		return invalidRange("search step must be positive, got %g", o.SearchStep)
	}
	if o.Tolerance <= 0 {
		return invalidRange("tolerance must be positive, got %g", o.Tolerance)
	}
	if o.G < 0 {
		return invalidRange("G must be positive, got %g", o.G)
	}
	if o.MaxBisections < 0 {
		return invalidRange("max bisections must be non-negative, got %d", o.MaxBisections)
	}
	return nil
}

func (o Options) simConfig() nbody.Config {
	return nbody.Config{
		G:          o.G,
		Timestep:   o.Timestep,
		Integrator: o.Integrator,
		Order:      o.Order,
		RelTol:     o.RelTol,
	}
}

// maxIterations returns the bisection cap for a bracket of the given width.
func (o Options) maxIterations(width float64) int {
	if o.MaxBisections > 0 {
		return o.MaxBisections
	}
	if width <= o.Tolerance {
		return 1
	}
	return int(math.Ceil(math.Log2(width/o.Tolerance))) + 2
}
