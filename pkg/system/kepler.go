package system

import (
	"errors"
	"fmt"
	"math"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
)

// ErrKeplerNotConverged is returned when the Kepler equation solver fails.
var ErrKeplerNotConverged = errors.New("kepler equation did not converge")

const (
	keplerTolerance = 1e-14
	keplerMaxIter   = 50
	deg             = math.Pi / 180
)

// SemiMajorAxis returns the orbit size for the gravitational parameter mu.
// Period takes precedence over A.
func (el Elements) SemiMajorAxis(mu float64) float64 {
	if el.Period > 0 {
		n := 2 * math.Pi / el.Period
		return math.Cbrt(mu / (n * n))
	}
	return el.A
}

// MeanAnomalyAt returns the mean anomaly in radians at the epoch. Without T0
// this is MeanAnomaly.
func (el Elements) MeanAnomalyAt(mu, epoch float64) float64 {
	if el.T0 == nil {
		return el.MeanAnomaly * deg
	}
	a := el.SemiMajorAxis(mu)
	n := math.Sqrt(mu / (a * a * a))

	// The observer is on +z, so mid-transit is where the argument of
	// latitude reaches 90 degrees.
	f := math.Pi/2 - el.Omega*deg
	e := el.E
	ea := 2 * math.Atan2(math.Sqrt(1-e)*math.Sin(f/2), math.Sqrt(1+e)*math.Cos(f/2))
	return ea - e*math.Sin(ea) + n*(epoch-*el.T0)
}

// State converts the elements to a position and velocity relative to the
// central body at time epoch. mu is G times the sum of both masses.
func (el Elements) State(mu, epoch float64) (pos, vel nbody.Vec3, err error) {
	if mu <= 0 {
		return pos, vel, fmt.Errorf("gravitational parameter must be positive, got %g", mu)
	}
	a := el.SemiMajorAxis(mu)
	if a <= 0 || math.IsNaN(a) {
		return pos, vel, fmt.Errorf("semi-major axis must be positive, got %g", a)
	}
	e := el.E
	if e < 0 || e >= 1 {
		return pos, vel, fmt.Errorf("eccentricity must be in [0, 1), got %g", e)
	}

	ea, err := solveKepler(el.MeanAnomalyAt(mu, epoch), e)
	if err != nil {
		return pos, vel, err
	}

	f := 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(ea/2), math.Sqrt(1-e)*math.Cos(ea/2))
	r := a * (1 - e*math.Cos(ea))
	h := math.Sqrt(mu / (a * (1 - e*e)))

	// Perifocal frame, then Rz(node) Rx(inc) Rz(omega) into the sky frame.
	px, py := r*math.Cos(f), r*math.Sin(f)
	vx, vy := -h*math.Sin(f), h*(e+math.Cos(f))

	pos = rotate(px, py, el.Omega*deg, el.Inc*deg, el.Node*deg)
	vel = rotate(vx, vy, el.Omega*deg, el.Inc*deg, el.Node*deg)
	return pos, vel, nil
}

func rotate(x, y, omega, inc, node float64) nbody.Vec3 {
	co, so := math.Cos(omega), math.Sin(omega)
	ci, si := math.Cos(inc), math.Sin(inc)
	cn, sn := math.Cos(node), math.Sin(node)

	x1 := co*x - so*y
	y1 := so*x + co*y

	y2 := ci * y1
	z2 := si * y1

	return nbody.Vec3{
		X: cn*x1 - sn*y2,
		Y: sn*x1 + cn*y2,
		Z: z2,
	}
}

// solveKepler solves M = E - e sin E for the eccentric anomaly E.
func solveKepler(m, e float64) (float64, error) {
	m = math.Remainder(m, 2*math.Pi)
	ea := m
	if e > 0.8 {
		ea = math.Copysign(math.Pi, m)
	}
	for i := 0; i < keplerMaxIter; i++ {
		d := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= d
		if math.Abs(d) < keplerTolerance {
			return ea, nil
		}
	}
	return 0, fmt.Errorf("%w: M=%g e=%g", ErrKeplerNotConverged, m, e)
}
