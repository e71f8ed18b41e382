package transit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
)

// Stats summarises the work done by one Compute call.
type Stats struct {
	// CoarseSteps is the number of search steps taken.
	CoarseSteps int `json:"coarse_steps"`

	// Transits is the total number of transits recorded across all bodies.
	Transits int `json:"transits"`

	// Bisections is the total number of bisection iterations.
	Bisections int `json:"bisections"`

	// IntegratorSteps is the number of internal integrator steps, including
	// those replayed during bisection.
	IntegratorSteps int64 `json:"integrator_steps"`
}

// Scanner finds transit times by scanning an N-body integration for sign
// changes of each body's x offset from the star and refining them by bisection.
type Scanner struct {
	opts      Options
	observers []Observer
	onStep    nbody.StepObserver
}

// Option customises a Scanner.
type Option func(*Scanner)

// WithObserver registers an observer notified of every recorded transit.
func WithObserver(obs Observer) Option {
	return func(s *Scanner) {
		if obs != nil {
			s.observers = append(s.observers, obs)
		}
	}
}

// WithStepObserver registers a hook called once per internal integrator step.
func WithStepObserver(obs nbody.StepObserver) Option {
	return func(s *Scanner) {
		s.onStep = obs
	}
}

// NewScanner validates opts and returns a Scanner.
func NewScanner(opts Options, options ...Option) (*Scanner, error) {
	if opts.G == 0 {
		opts.G = nbody.DefaultG
	}
	if opts.Order == 0 {
		opts.Order = 4
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Scanner{opts: opts}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Options returns the effective scan options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Compute runs a scan over bodies with the given options. See Scanner.Compute.
func Compute(ctx context.Context, bodies []*Body, opts Options) error {
	s, err := NewScanner(opts)
	if err != nil {
		return err
	}
	_, err = s.Compute(ctx, bodies)
	return err
}

// Compute integrates bodies from Start to End and records, for every body
// after the first, each time it crosses in front of body 0 along the line of
// sight. Previously recorded transits are discarded first. On error the
// transits recorded before the failure remain valid.
//
// Coarse steps sit on a fixed grid of SearchStep from Start. After a
// detection the loop resumes from the end of the interval that held the
// transit, not from the refined transit time.
func (s *Scanner) Compute(ctx context.Context, bodies []*Body) (stats *Stats, err error) {
	op := telemetry.StartOperation(ctx, "transit.compute",
		telemetry.AttrBodyCount.Int(len(bodies)),
		telemetry.AttrIntegrator.String(s.opts.Integrator.String()),
		telemetry.AttrStart.Float64(s.opts.Start),
		telemetry.AttrEnd.Float64(s.opts.End),
	)
	tel := telemetry.FromTelemetryContext(ctx)
	stats = &Stats{}

	if tel != nil {
		tel.Metrics.ScanStarted()
		_ = tel.Events.PublishScanStarted(len(bodies), s.opts.Start, s.opts.End)
	}
	defer func() {
		if err != nil && op.Span != nil {
			op.Span.SetAttributes(
				telemetry.AttrErrorClass.String(string(ClassOf(err))),
				telemetry.AttrErrorCode.String(errorCode(err)),
			)
		}
		op.End(err)
		if tel == nil {
			return
		}
		status := "succeeded"
		if err != nil {
			status = "failed"
			tel.Metrics.RecordError(string(ClassOf(err)), errorCode(err))
			_ = tel.Events.PublishScanFailed(err.Error())
		} else {
			_ = tel.Events.PublishScanCompleted(stats.Transits, op.Timer.Duration())
		}
		tel.Metrics.RecordScan(s.opts.Integrator.String(), status, op.Timer.Duration())
		tel.Metrics.AddIntegratorSteps(s.opts.Integrator.String(), stats.IntegratorSteps)
	}()

	if len(bodies) < 2 {
		return stats, invalidRange("need a star and at least one body, got %d bodies", len(bodies))
	}
	for i, b := range bodies {
		if err := b.validate(i); err != nil {
			return stats, err
		}
	}
	for _, b := range bodies {
		b.Reset()
	}

	sim, err := nbody.New(s.opts.simConfig())
	if err != nil {
		return stats, invalidRange("%v", err)
	}
	for _, b := range bodies {
		sim.Add(b.particle())
	}
	sim.MoveToCOM()
	if s.onStep != nil {
		sim.OnStep(s.onStep)
	}
	defer func() {
		stats.IntegratorSteps = sim.Steps()
	}()

	err = s.scan(op.Ctx, sim, bodies, stats, op.Logger)
	if err == nil {
		op.Logger.Infof("scan complete: %d transits over [%g, %g) in %d search steps",
			stats.Transits, s.opts.Start, s.opts.End, stats.CoarseSteps)
	}
	return stats, err
}

// scan drives the coarse loop. The shared clock is only ever moved forward
// by AdvanceTo; bisection rewinds through snapshots and the coarse loop
// resumes from the checkpoint at the end of the interval.
func (s *Scanner) scan(ctx context.Context, sim *nbody.Simulation, bodies []*Body, stats *Stats, logger *telemetry.Logger) error {
	np := len(bodies)
	span := s.opts.End - s.opts.Start
	before := make([]skyState, np)
	after := make([]skyState, np)
	zAfter := make([]float64, np)

	for s.opts.Start+sim.Time() < s.opts.End {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan interrupted at t=%g: %w", s.opts.Start+sim.Time(), err)
		}

		t1 := sim.Time()
		for p := 1; p < np; p++ {
			before[p] = relativeSky(sim, p)
		}
		start := sim.Snapshot()

		target := math.Min(t1+s.opts.SearchStep, span)
		if err := sim.AdvanceTo(target); err != nil {
			return integratorFailure(err)
		}
		t2 := sim.Time()
		stats.CoarseSteps++

		// Bisection moves the clock, so sample every body at t2 first.
		for p := 1; p < np; p++ {
			after[p] = relativeSky(sim, p)
			zAfter[p] = sim.Particle(p).Pos.Z
		}

		// A step wide enough to hold a transit and an occultation can leave
		// x with the same sign at both ends, and a transit early in a long
		// step can leave the body behind particle 0 by t2.
		for p := 1; p < np; p++ {
			n, transit := zeroCrossings(before[p], after[p], t2-t1)
			switch {
			case n > 1:
				return newError(ErrorClassNumerical, CodeAmbiguousCrossing,
					"more than one x crossing within search step [%g, %g]; reduce the search step",
					s.opts.Start+t1, s.opts.Start+t2).WithBody(bodies[p].label(p), s.opts.Start+t2)
			case transit && zAfter[p] <= 0:
				return newError(ErrorClassNumerical, CodeAmbiguousCrossing,
					"transit within search step [%g, %g] ends behind the star; reduce the search step",
					s.opts.Start+t1, s.opts.Start+t2).WithBody(bodies[p].label(p), s.opts.Start+t2)
			}
		}

		var end *nbody.Snapshot
		for p := 1; p < np; p++ {
			if before[p].x*after[p].x >= 0 || zAfter[p] <= 0 {
				continue
			}

			name := bodies[p].label(p)
			if before[p].vx*after[p].vx < 0 {
				return newError(ErrorClassNumerical, CodeAmbiguousCrossing,
					"x motion reverses within search step [%g, %g]; reduce the search step",
					s.opts.Start+t1, s.opts.Start+t2).WithBody(name, s.opts.Start+t2)
			}

			if end == nil {
				snap := sim.Snapshot()
				end = &snap
			}

			tr, iters, width, err := s.bisect(sim, start, p, before[p].x, t1, t2)
			stats.Bisections += iters
			if err != nil {
				var se *ScanError
				if errors.As(err, &se) && se.Body == "" {
					se.WithBody(name, s.opts.Start+t2)
				}
				return err
			}

			when := s.opts.Start + tr
			if when >= s.opts.End {
				continue
			}
			if err := bodies[p].record(p, when); err != nil {
				return err
			}
			stats.Transits++
			s.notify(ctx, logger, TransitEvent{
				Body:       name,
				Index:      p,
				Number:     bodies[p].TransitCount() - 1,
				Time:       when,
				Iterations: iters,
				Bracket:    width,
			})
		}

		if end != nil {
			if err := sim.Restore(*end); err != nil {
				return integratorFailure(err)
			}
		}
	}

	return nil
}

func (s *Scanner) notify(ctx context.Context, logger *telemetry.Logger, ev TransitEvent) {
	logger.WithBody(ev.Body).Debugf("transit %d at t=%.8f (%d bisections)", ev.Number, ev.Time, ev.Iterations)

	if span := telemetry.SpanFromContext(ctx); span.IsRecording() {
		telemetry.AddTransitEvent(span, ev.Body, ev.Number, ev.Time)
	}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordTransit(ev.Body, ev.Iterations)
		_ = tel.Events.PublishTransitDetected(ev.Body, ev.Number, ev.Time)
	}
	for _, obs := range s.observers {
		obs.OnTransit(ev)
	}
}

// skyState is a body's position and velocity in the x-z plane relative to
// particle 0.
type skyState struct {
	x, z, vx, vz float64
}

func relativeSky(sim *nbody.Simulation, p int) skyState {
	star := sim.Particle(0)
	body := sim.Particle(p)
	return skyState{
		x:  body.Pos.X - star.Pos.X,
		z:  body.Pos.Z - star.Pos.Z,
		vx: body.Vel.X - star.Vel.X,
		vz: body.Vel.Z - star.Vel.Z,
	}
}

// angle is the position angle atan2(x, z): 0 in front of particle 0 and
// +-pi behind it.
func (st skyState) angle() float64 { return math.Atan2(st.x, st.z) }

// rate is d(angle)/dt. For a bound pair it has the sign of the y angular
// momentum, so the angle moves monotonically.
func (st skyState) rate() float64 {
	r2 := st.x*st.x + st.z*st.z
	if r2 == 0 {
		return 0
	}
	return (st.z*st.vx - st.x*st.vz) / r2
}

// zeroCrossings estimates how many times x passes through zero between two
// samples dt apart, and whether one of those zeros is in front of particle 0.
// The swept angle is the mean rate times dt, snapped to the 2*pi branch that
// agrees with the sampled end angle. Each multiple of pi crossed is one zero
// of x; even multiples are transits.
func zeroCrossings(a, b skyState, dt float64) (n int, transit bool) {
	phi1 := a.angle()
	sweep := 0.5 * (a.rate() + b.rate()) * dt
	phi2 := b.angle()
	phi2 += 2 * math.Pi * math.Round((phi1+sweep-phi2)/(2*math.Pi))

	lo, hi := math.Min(phi1, phi2), math.Max(phi1, phi2)
	k := int(math.Floor(hi / math.Pi))
	n = k - int(math.Floor(lo/math.Pi))
	return n, n > 1 || (n == 1 && k%2 == 0)
}

func errorCode(err error) string {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
