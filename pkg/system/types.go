package system

import (
	"fmt"
	"strings"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

// Time units in days.
const (
	Second = transit.Second
	Minute = transit.Minute
	Hour   = transit.Hour
)

// MaxTransits is the per-body transit limit written into new system files.
const MaxTransits = 5000

// Config describes a planetary system and how to scan it for transits.
// Times are in days, masses in solar masses and distances in AU.
type Config struct {
	// Name identifies the system in logs and stored runs.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required"`

	// Epoch is the time of the initial conditions.
	Epoch float64 `json:"t_start" yaml:"t_start" toml:"t_start"`

	// Duration is the length of the scan. Ignored when End is set.
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty" toml:"duration,omitempty" validate:"gte=0"`

	// End is the absolute end of the scan. Zero means Epoch + Duration.
	End float64 `json:"t_end,omitempty" yaml:"t_end,omitempty" toml:"t_end,omitempty"`

	// Timestep is the integrator step.
	Timestep float64 `json:"timestep,omitempty" yaml:"timestep,omitempty" toml:"timestep,omitempty" validate:"gte=0"`

	// SearchStep is the coarse transit search step.
	SearchStep float64 `json:"search_step,omitempty" yaml:"search_step,omitempty" toml:"search_step,omitempty" validate:"gte=0"`

	// Tolerance is the transit time tolerance.
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty" toml:"tolerance,omitempty" validate:"gte=0"`

	// Integrator names the integration scheme (dopri, ias15, symplectic, whfast).
	Integrator string `json:"integrator,omitempty" yaml:"integrator,omitempty" toml:"integrator,omitempty" validate:"omitempty,oneof=dopri rk45 ias15 symplectic leapfrog whfast"`

	// Order is the symplectic composition order.
	Order int `json:"order,omitempty" yaml:"order,omitempty" toml:"order,omitempty" validate:"omitempty,oneof=2 4 6"`

	// G overrides the gravitational constant.
	G float64 `json:"g,omitempty" yaml:"g,omitempty" toml:"g,omitempty" validate:"gte=0"`

	// MaxTransits bounds the transits recorded per planet. Zero is unbounded.
	MaxTransits int `json:"max_transits,omitempty" yaml:"max_transits,omitempty" toml:"max_transits,omitempty" validate:"gte=0"`

	// Star is the central body. It starts at rest at the origin.
	Star Star `json:"star" yaml:"star" toml:"star"`

	// Planets orbit the star, in scan order.
	Planets []Planet `json:"planets" yaml:"planets" toml:"planets" validate:"required,min=1,dive"`
}

// Star is the central body of a system.
type Star struct {
	Name string  `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Mass float64 `json:"mass" yaml:"mass" toml:"mass" validate:"gt=0"`
}

// Planet is an orbiting body given either as a Cartesian state relative to
// the star or as Keplerian elements.
type Planet struct {
	Name string  `json:"name" yaml:"name" toml:"name" validate:"required"`
	Mass float64 `json:"mass" yaml:"mass" toml:"mass" validate:"gte=0"`

	Position *nbody.Vec3 `json:"position,omitempty" yaml:"position,omitempty" toml:"position,omitempty" validate:"required_without=Elements,excluded_with=Elements"`
	Velocity *nbody.Vec3 `json:"velocity,omitempty" yaml:"velocity,omitempty" toml:"velocity,omitempty" validate:"required_without=Elements,excluded_with=Elements"`

	Elements *Elements `json:"elements,omitempty" yaml:"elements,omitempty" toml:"elements,omitempty"`
}

// Elements are astrocentric Keplerian elements in the sky frame, where the
// observer looks down the z axis. Angles are in degrees. An orbit with
// Inc = 90 is edge-on.
type Elements struct {
	// Period or A sets the orbit size; Period wins when both are given.
	Period float64 `json:"period,omitempty" yaml:"period,omitempty" toml:"period,omitempty" validate:"required_without=A,gte=0"`
	A      float64 `json:"a,omitempty" yaml:"a,omitempty" toml:"a,omitempty" validate:"required_without=Period,gte=0"`

	E     float64 `json:"e,omitempty" yaml:"e,omitempty" toml:"e,omitempty" validate:"gte=0,lt=1"`
	Inc   float64 `json:"inc" yaml:"inc" toml:"inc" validate:"gte=0,lte=180"`
	Omega float64 `json:"omega,omitempty" yaml:"omega,omitempty" toml:"omega,omitempty"`
	Node  float64 `json:"node,omitempty" yaml:"node,omitempty" toml:"node,omitempty"`

	// T0 is a time of mid-transit. When set it fixes the orbital phase and
	// MeanAnomaly is ignored.
	T0 *float64 `json:"t0,omitempty" yaml:"t0,omitempty" toml:"t0,omitempty"`

	// MeanAnomaly is the mean anomaly at the epoch, in degrees.
	MeanAnomaly float64 `json:"mean_anomaly,omitempty" yaml:"mean_anomaly,omitempty" toml:"mean_anomaly,omitempty"`
}

// ValidationError describes one problem found while loading a system.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// LoadError collects every validation problem of a system file.
type LoadError struct {
	Source string
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid system %s: %s", e.Source, e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("invalid system %s: %d errors:\n  %s", e.Source, len(e.Errors), strings.Join(msgs, "\n  "))
}
