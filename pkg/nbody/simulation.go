package nbody

import (
	"fmt"
	"math"
)

// DefaultG is the gravitational constant in AU^3 / Msun / day^2.
const DefaultG = 0.00029591220363

// Config configures a Simulation.
type Config struct {
	// G is the gravitational constant. Zero means DefaultG.
	G float64

	// Timestep is the fixed step of the symplectic scheme and the initial
	// step of the adaptive scheme, in days.
	Timestep float64

	// Integrator selects the integration scheme.
	Integrator Integrator

	// Order is the order of the symplectic composition (2, 4 or 6).
	// Zero means 4. Ignored by the adaptive scheme.
	Order int

	// RelTol and AbsTol bound the local error of the adaptive scheme.
	// Zero means 1e-11 and 1e-14.
	RelTol float64
	AbsTol float64
}

// DefaultConfig returns the configuration used when callers have no preference.
func DefaultConfig() Config {
	return Config{
		G:          DefaultG,
		Timestep:   0.01,
		Integrator: IntegratorDOPRI,
		Order:      4,
		RelTol:     1e-11,
		AbsTol:     1e-14,
	}
}

// Particle is a point mass with its phase-space state.
type Particle struct {
	Mass float64 `json:"m"`
	Pos  Vec3    `json:"pos"`
	Vel  Vec3    `json:"vel"`
}

// StepObserver is notified once per internal integration step.
type StepObserver interface {
	OnStep(sim *Simulation)
}

// StepFunc adapts a function to the StepObserver interface.
type StepFunc func(sim *Simulation)

// OnStep calls f(sim).
func (f StepFunc) OnStep(sim *Simulation) { f(sim) }

type noopObserver struct{}

func (noopObserver) OnStep(*Simulation) {}

// Simulation integrates a set of point masses under mutual gravity.
// A Simulation is not safe for concurrent use.
type Simulation struct {
	cfg      Config
	t        float64
	masses   []float64
	y        state
	acc      []Vec3
	h        float64
	weights  []float64
	dp       dopri
	observer StepObserver
	steps    int64
}

// New creates an empty simulation at time zero.
func New(cfg Config) (*Simulation, error) {
	if cfg.G == 0 {
		cfg.G = DefaultG
	}
	if cfg.Order == 0 {
		cfg.Order = 4
	}
	if cfg.RelTol == 0 {
		cfg.RelTol = 1e-11
	}
	if cfg.AbsTol == 0 {
		cfg.AbsTol = 1e-14
	}
	if !isFinite(cfg.G) || cfg.G <= 0 {
		return nil, fmt.Errorf("%w: G must be positive, got %g", ErrInvalidConfig, cfg.G)
	}
	if !isFinite(cfg.Timestep) || cfg.Timestep <= 0 {
		return nil, fmt.Errorf("%w: timestep must be positive, got %g", ErrInvalidConfig, cfg.Timestep)
	}
	if cfg.RelTol < 0 || cfg.AbsTol < 0 {
		return nil, fmt.Errorf("%w: tolerances must be non-negative", ErrInvalidConfig)
	}

	s := &Simulation{
		cfg:      cfg,
		h:        cfg.Timestep,
		observer: noopObserver{},
	}

	switch cfg.Integrator {
	case IntegratorDOPRI:
	case IntegratorSymplectic:
		w, err := compositionWeights(cfg.Order)
		if err != nil {
			return nil, err
		}
		s.weights = w
	default:
		return nil, fmt.Errorf("%w: unknown integrator %d", ErrInvalidConfig, int(cfg.Integrator))
	}

	return s, nil
}

// Config returns the effective configuration.
func (s *Simulation) Config() Config {
	return s.cfg
}

// Add appends a particle. Particle indices follow insertion order.
func (s *Simulation) Add(p Particle) {
	s.masses = append(s.masses, p.Mass)
	s.y.pos = append(s.y.pos, p.Pos)
	s.y.vel = append(s.y.vel, p.Vel)
	s.acc = append(s.acc, Vec3{})
}

// Len returns the number of particles.
func (s *Simulation) Len() int {
	return len(s.masses)
}

// Time returns the current simulation time.
func (s *Simulation) Time() float64 {
	return s.t
}

// Steps returns the number of accepted internal steps taken so far.
func (s *Simulation) Steps() int64 {
	return s.steps
}

// Particle returns the state of particle i. It panics if i is out of range,
// like a slice index would.
func (s *Simulation) Particle(i int) Particle {
	return Particle{Mass: s.masses[i], Pos: s.y.pos[i], Vel: s.y.vel[i]}
}

// Particles returns a copy of every particle's state.
func (s *Simulation) Particles() []Particle {
	out := make([]Particle, len(s.masses))
	for i := range out {
		out[i] = s.Particle(i)
	}
	return out
}

// OnStep registers the per-step observer. A nil observer restores the no-op.
func (s *Simulation) OnStep(obs StepObserver) {
	if obs == nil {
		obs = noopObserver{}
	}
	s.observer = obs
}

// MoveToCOM shifts positions and velocities so the centre of mass sits at
// the origin with zero net momentum.
func (s *Simulation) MoveToCOM() {
	var mtot float64
	var rc, vc Vec3
	for i, m := range s.masses {
		mtot += m
		rc = rc.Add(s.y.pos[i].Scale(m))
		vc = vc.Add(s.y.vel[i].Scale(m))
	}
	if mtot == 0 {
		return
	}
	rc = rc.Scale(1 / mtot)
	vc = vc.Scale(1 / mtot)
	for i := range s.masses {
		s.y.pos[i] = s.y.pos[i].Sub(rc)
		s.y.vel[i] = s.y.vel[i].Sub(vc)
	}
}

// AdvanceTo integrates forward until the clock reads exactly target.
// The final internal step is shortened so the target is never overshot.
func (s *Simulation) AdvanceTo(target float64) error {
	if !isFinite(target) {
		return fmt.Errorf("%w: target time %g", ErrInvalidConfig, target)
	}
	if target < s.t {
		return fmt.Errorf("%w: target=%g current=%g", ErrBackward, target, s.t)
	}

	for s.t < target {
		remaining := target - s.t

		switch s.cfg.Integrator {
		case IntegratorSymplectic:
			h := s.cfg.Timestep
			last := remaining <= h*(1+1e-9)
			if last {
				h = remaining
			}
			s.symplecticStep(h)
			if last {
				s.t = target
			} else {
				s.t += h
			}

		default:
			h := s.h
			last := h >= remaining
			if last {
				h = remaining
			}
			ok, next := s.dopriStep(h)
			if !ok {
				if next == 0 || math.IsNaN(next) {
					return s.stepError(ErrNonFinite)
				}
				if next < minStep(s.t) {
					return s.stepError(ErrStepTooSmall)
				}
				s.h = next
				continue
			}
			if last {
				s.t = target
			} else {
				s.t += h
				s.h = next
			}
		}

		s.steps++
		if !s.finite() {
			return s.stepError(ErrNonFinite)
		}
		s.observer.OnStep(s)
	}

	return nil
}

func minStep(t float64) float64 {
	return 1e-14 * math.Max(1, math.Abs(t))
}

func (s *Simulation) stepError(err error) error {
	return &StepError{
		Step:       s.steps,
		Time:       s.t,
		Integrator: s.cfg.Integrator,
		Err:        err,
	}
}

func (s *Simulation) finite() bool {
	for i := range s.masses {
		if !s.y.pos[i].IsFinite() || !s.y.vel[i].IsFinite() {
			return false
		}
	}
	return true
}

// accelerations writes the gravitational acceleration of every particle into out.
func (s *Simulation) accelerations(pos []Vec3, out []Vec3) {
	for i := range out {
		out[i] = Vec3{}
	}
	g := s.cfg.G
	for i := 0; i < len(pos); i++ {
		for j := i + 1; j < len(pos); j++ {
			d := pos[j].Sub(pos[i])
			r2 := d.Dot(d)
			inv := 1 / (r2 * math.Sqrt(r2))
			out[i] = out[i].Add(d.Scale(g * s.masses[j] * inv))
			out[j] = out[j].Sub(d.Scale(g * s.masses[i] * inv))
		}
	}
}

// Energy returns the total (kinetic plus potential) energy.
func (s *Simulation) Energy() float64 {
	var e float64
	for i, m := range s.masses {
		e += 0.5 * m * s.y.vel[i].Dot(s.y.vel[i])
		for j := i + 1; j < len(s.masses); j++ {
			e -= s.cfg.G * m * s.masses[j] / s.y.pos[j].Sub(s.y.pos[i]).Norm()
		}
	}
	return e
}

// Momentum returns the total linear momentum.
func (s *Simulation) Momentum() Vec3 {
	var p Vec3
	for i, m := range s.masses {
		p = p.Add(s.y.vel[i].Scale(m))
	}
	return p
}

// Snapshot is a checkpoint of the clock and particle state.
type Snapshot struct {
	Time float64
	pos  []Vec3
	vel  []Vec3
	h    float64
}

// Snapshot captures the current state so it can be restored later.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Time: s.t,
		pos:  make([]Vec3, len(s.y.pos)),
		vel:  make([]Vec3, len(s.y.vel)),
		h:    s.h,
	}
	copy(snap.pos, s.y.pos)
	copy(snap.vel, s.y.vel)
	return snap
}

// Restore rewinds (or fast-forwards) the simulation to a snapshot taken
// from this simulation. The step counter is not rewound.
func (s *Simulation) Restore(snap Snapshot) error {
	if len(snap.pos) != len(s.y.pos) {
		return fmt.Errorf("%w: snapshot has %d particles, simulation has %d", ErrIndex, len(snap.pos), len(s.y.pos))
	}
	s.t = snap.Time
	s.h = snap.h
	copy(s.y.pos, snap.pos)
	copy(s.y.vel, snap.vel)
	return nil
}
