package nbody

import (
	"fmt"
	"math"
	"strings"
)

// Integrator selects the integration scheme used by a Simulation.
type Integrator int

const (
	// IntegratorDOPRI is an adaptive Dormand-Prince 5(4) Runge-Kutta scheme.
	IntegratorDOPRI Integrator = iota

	// IntegratorSymplectic is a fixed-step kick-drift-kick leapfrog composed
	// to order 2, 4 or 6.
	IntegratorSymplectic
)

// String returns the canonical name of the integrator.
func (i Integrator) String() string {
	switch i {
	case IntegratorDOPRI:
		return "dopri"
	case IntegratorSymplectic:
		return "symplectic"
	default:
		return fmt.Sprintf("integrator(%d)", int(i))
	}
}

// ParseIntegrator maps a name to an Integrator. The names "ias15" and "whfast"
// are accepted for the adaptive and symplectic schemes respectively.
func ParseIntegrator(name string) (Integrator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dopri", "rk45", "ias15":
		return IntegratorDOPRI, nil
	case "symplectic", "leapfrog", "whfast":
		return IntegratorSymplectic, nil
	default:
		return 0, fmt.Errorf("%w: unsupported integrator %q", ErrInvalidConfig, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Integrator) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Integrator) UnmarshalText(text []byte) error {
	v, err := ParseIntegrator(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Dormand-Prince 5(4) tableau.
const (
	dpC2 = 1.0 / 5.0
	dpC3 = 3.0 / 10.0
	dpC4 = 4.0 / 5.0
	dpC5 = 8.0 / 9.0

	dpA21 = 1.0 / 5.0
	dpA31 = 3.0 / 40.0
	dpA32 = 9.0 / 40.0
	dpA41 = 44.0 / 45.0
	dpA42 = -56.0 / 15.0
	dpA43 = 32.0 / 9.0
	dpA51 = 19372.0 / 6561.0
	dpA52 = -25360.0 / 2187.0
	dpA53 = 64448.0 / 6561.0
	dpA54 = -212.0 / 729.0
	dpA61 = 9017.0 / 3168.0
	dpA62 = -355.0 / 33.0
	dpA63 = 46732.0 / 5247.0
	dpA64 = 49.0 / 176.0
	dpA65 = -5103.0 / 18656.0
	dpA71 = 35.0 / 384.0
	dpA73 = 500.0 / 1113.0
	dpA74 = 125.0 / 192.0
	dpA75 = -2187.0 / 6784.0
	dpA76 = 11.0 / 84.0

	// Differences between the 5th and 4th order weights.
	dpE1 = 71.0 / 57600.0
	dpE3 = -71.0 / 16695.0
	dpE4 = 71.0 / 1920.0
	dpE5 = -17253.0 / 339200.0
	dpE6 = 22.0 / 525.0
	dpE7 = -1.0 / 40.0
)

// state is the flattened phase-space vector: positions then velocities.
type state struct {
	pos []Vec3
	vel []Vec3
}

func newState(n int) state {
	return state{pos: make([]Vec3, n), vel: make([]Vec3, n)}
}

// deriv holds dpos/dt and dvel/dt for one stage.
type deriv struct {
	dpos []Vec3
	dvel []Vec3
}

func newDeriv(n int) deriv {
	return deriv{dpos: make([]Vec3, n), dvel: make([]Vec3, n)}
}

// dopri carries the stage buffers so repeated steps do not allocate.
type dopri struct {
	k     [7]deriv
	tmp   state
	y5    state
	ready bool
}

func (d *dopri) init(n int) {
	for i := range d.k {
		d.k[i] = newDeriv(n)
	}
	d.tmp = newState(n)
	d.y5 = newState(n)
	d.ready = true
}

// evalDeriv fills out with the derivative of y.
func (s *Simulation) evalDeriv(y state, out deriv) {
	copy(out.dpos, y.vel)
	s.accelerations(y.pos, out.dvel)
}

// combine writes y + h*sum(coef[j]*k[j]) into dst.
func combine(dst, y state, h float64, ks []deriv, coef []float64) {
	for i := range y.pos {
		p := y.pos[i]
		v := y.vel[i]
		for j, k := range ks {
			c := coef[j] * h
			if c == 0 {
				continue
			}
			p = p.Add(k.dpos[i].Scale(c))
			v = v.Add(k.dvel[i].Scale(c))
		}
		dst.pos[i] = p
		dst.vel[i] = v
	}
}

// dopriStep attempts one step of size h from the current state. On acceptance
// it updates the particles and returns true with the suggested next step.
func (s *Simulation) dopriStep(h float64) (bool, float64) {
	d := &s.dp
	n := len(s.masses)
	if !d.ready || len(d.tmp.pos) != n {
		d.init(n)
	}

	y := s.y
	s.evalDeriv(y, d.k[0])

	combine(d.tmp, y, h, d.k[:1], []float64{dpA21})
	s.evalDeriv(d.tmp, d.k[1])

	combine(d.tmp, y, h, d.k[:2], []float64{dpA31, dpA32})
	s.evalDeriv(d.tmp, d.k[2])

	combine(d.tmp, y, h, d.k[:3], []float64{dpA41, dpA42, dpA43})
	s.evalDeriv(d.tmp, d.k[3])

	combine(d.tmp, y, h, d.k[:4], []float64{dpA51, dpA52, dpA53, dpA54})
	s.evalDeriv(d.tmp, d.k[4])

	combine(d.tmp, y, h, d.k[:5], []float64{dpA61, dpA62, dpA63, dpA64, dpA65})
	s.evalDeriv(d.tmp, d.k[5])

	combine(d.y5, y, h, d.k[:6], []float64{dpA71, 0, dpA73, dpA74, dpA75, dpA76})
	s.evalDeriv(d.y5, d.k[6])

	// Error estimate, RMS over all components.
	errCoef := []float64{dpE1, 0, dpE3, dpE4, dpE5, dpE6, dpE7}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		var ep, ev Vec3
		for j := range d.k {
			c := errCoef[j] * h
			if c == 0 {
				continue
			}
			ep = ep.Add(d.k[j].dpos[i].Scale(c))
			ev = ev.Add(d.k[j].dvel[i].Scale(c))
		}
		sum += scaledSq(ep, y.pos[i], d.y5.pos[i], s.cfg.AbsTol, s.cfg.RelTol)
		sum += scaledSq(ev, y.vel[i], d.y5.vel[i], s.cfg.AbsTol, s.cfg.RelTol)
		count += 6
	}
	errNorm := math.Sqrt(sum / float64(count))

	if math.IsNaN(errNorm) {
		return false, 0
	}

	fac := 5.0
	if errNorm > 0 {
		fac = 0.9 * math.Pow(errNorm, -0.2)
		fac = math.Min(5.0, math.Max(0.2, fac))
	}
	next := h * fac

	if errNorm > 1 {
		return false, next
	}

	copy(y.pos, d.y5.pos)
	copy(y.vel, d.y5.vel)
	return true, next
}

func scaledSq(e, a, b Vec3, atol, rtol float64) float64 {
	sq := func(err, x0, x1 float64) float64 {
		sc := atol + rtol*math.Max(math.Abs(x0), math.Abs(x1))
		r := err / sc
		return r * r
	}
	return sq(e.X, a.X, b.X) + sq(e.Y, a.Y, b.Y) + sq(e.Z, a.Z, b.Z)
}

// Yoshida composition weights for the leapfrog sub-steps.
var (
	yoshida2 = []float64{1}
	yoshida4 = func() []float64 {
		cbrt2 := math.Cbrt(2)
		w1 := 1 / (2 - cbrt2)
		w0 := -cbrt2 / (2 - cbrt2)
		return []float64{w1, w0, w1}
	}()
	yoshida6 = func() []float64 {
		w1 := -1.17767998417887
		w2 := 0.235573213359357
		w3 := 0.784513610477560
		w0 := 1 - 2*(w1+w2+w3)
		return []float64{w3, w2, w1, w0, w1, w2, w3}
	}()
)

func compositionWeights(order int) ([]float64, error) {
	switch order {
	case 2:
		return yoshida2, nil
	case 4:
		return yoshida4, nil
	case 6:
		return yoshida6, nil
	default:
		return nil, fmt.Errorf("%w: symplectic order must be 2, 4 or 6, got %d", ErrInvalidConfig, order)
	}
}

// symplecticStep advances the state by h using the composed leapfrog.
func (s *Simulation) symplecticStep(h float64) {
	y := s.y
	acc := s.acc
	s.accelerations(y.pos, acc)
	for _, w := range s.weights {
		dt := w * h
		for i := range y.vel {
			y.vel[i] = y.vel[i].Add(acc[i].Scale(0.5 * dt))
			y.pos[i] = y.pos[i].Add(y.vel[i].Scale(dt))
		}
		s.accelerations(y.pos, acc)
		for i := range y.vel {
			y.vel[i] = y.vel[i].Add(acc[i].Scale(0.5 * dt))
		}
	}
}
