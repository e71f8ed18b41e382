package transit

import (
	"fmt"
	"math"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
)

// Body is a point mass taking part in the scan. Body 0 of a scan is the
// reference star; transits are searched for every other body.
type Body struct {
	// Name identifies the body in logs, events and stored results.
	Name string `json:"name"`

	// Mass in solar masses.
	Mass float64 `json:"mass"`

	// Position in AU in the sky frame: x to the right, y up, z toward the observer.
	Position nbody.Vec3 `json:"position"`

	// Velocity in AU/day in the sky frame.
	Velocity nbody.Vec3 `json:"velocity"`

	// TransitTimes holds the recorded mid-transit times in days, increasing.
	TransitTimes []float64 `json:"transit_times,omitempty"`

	// Capacity bounds len(TransitTimes). Zero means unbounded.
	Capacity int `json:"capacity,omitempty"`
}

// TransitCount returns the number of transits recorded so far.
func (b *Body) TransitCount() int {
	return len(b.TransitTimes)
}

// Reset clears recorded transits, keeping the backing array.
func (b *Body) Reset() {
	b.TransitTimes = b.TransitTimes[:0]
}

// particle converts the body to an integrator particle.
func (b *Body) particle() nbody.Particle {
	return nbody.Particle{Mass: b.Mass, Pos: b.Position, Vel: b.Velocity}
}

func (b *Body) label(index int) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("body[%d]", index)
}

func (b *Body) validate(index int) error {
	if b == nil {
		return newError(ErrorClassPrecondition, CodeInvalidBody, "body %d is nil", index)
	}
	if math.IsNaN(b.Mass) || math.IsInf(b.Mass, 0) || b.Mass < 0 {
		return newError(ErrorClassPrecondition, CodeInvalidBody, "body %s has invalid mass %g", b.label(index), b.Mass)
	}
	if index == 0 && b.Mass == 0 {
		return newError(ErrorClassPrecondition, CodeInvalidBody, "reference body %s must have positive mass", b.label(index))
	}
	if !b.Position.IsFinite() || !b.Velocity.IsFinite() {
		return newError(ErrorClassPrecondition, CodeInvalidBody, "body %s has non-finite state", b.label(index))
	}
	if b.Capacity < 0 {
		return newError(ErrorClassPrecondition, CodeInvalidBody, "body %s has negative capacity %d", b.label(index), b.Capacity)
	}
	return nil
}

// record appends a transit time, enforcing capacity and ordering.
func (b *Body) record(index int, t float64) error {
	if b.Capacity > 0 && len(b.TransitTimes) >= b.Capacity {
		return newError(ErrorClassPrecondition, CodeCapacityExceeded,
			"transit buffer full after %d transits", b.Capacity).WithBody(b.label(index), t)
	}
	if n := len(b.TransitTimes); n > 0 && t <= b.TransitTimes[n-1] {
		return newError(ErrorClassNumerical, CodeAmbiguousCrossing,
			"transit at %g does not follow previous transit at %g", t, b.TransitTimes[n-1]).WithBody(b.label(index), t)
	}
	b.TransitTimes = append(b.TransitTimes, t)
	return nil
}
