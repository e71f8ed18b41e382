package nbody

import (
	"errors"
	"fmt"
)

// Integrator failures. They are fatal to the caller and never retried.
var (
	// ErrNonFinite indicates a particle position or velocity became NaN or Inf.
	ErrNonFinite = errors.New("nbody: non-finite particle state")

	// ErrStepTooSmall indicates the adaptive step fell below the representable minimum.
	ErrStepTooSmall = errors.New("nbody: adaptive timestep below minimum")

	// ErrBackward indicates AdvanceTo was asked to move the clock backwards.
	ErrBackward = errors.New("nbody: target time is before current time")

	// ErrInvalidConfig indicates a simulation was configured with unusable values.
	ErrInvalidConfig = errors.New("nbody: invalid configuration")

	// ErrIndex indicates a particle index outside the simulation.
	ErrIndex = errors.New("nbody: particle index out of range")
)

// StepError wraps an integrator failure with the step and time at which it occurred.
type StepError struct {
	Step       int64
	Time       float64
	Integrator Integrator
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s integrator failed at step %d (t=%g): %v", e.Integrator, e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
