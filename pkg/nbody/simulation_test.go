package nbody

import (
	"errors"
	"math"
	"testing"
)

// twoBody builds a star plus one planet on a circular orbit in the x-z plane.
func twoBody(t *testing.T, cfg Config, a, mp float64) *Simulation {
	t.Helper()

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	n := math.Sqrt(DefaultG * (1 + mp) / (a * a * a))
	sim.Add(Particle{Mass: 1})
	sim.Add(Particle{
		Mass: mp,
		Pos:  Vec3{X: -a},
		Vel:  Vec3{Z: a * n},
	})
	sim.MoveToCOM()
	return sim
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero timestep", Config{Timestep: 0}},
		{"negative timestep", Config{Timestep: -1}},
		{"NaN timestep", Config{Timestep: math.NaN()}},
		{"negative G", Config{Timestep: 0.1, G: -1}},
		{"bad order", Config{Timestep: 0.1, Integrator: IntegratorSymplectic, Order: 3}},
		{"unknown integrator", Config{Timestep: 0.1, Integrator: Integrator(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseIntegrator(t *testing.T) {
	tests := []struct {
		in   string
		want Integrator
	}{
		{"dopri", IntegratorDOPRI},
		{"IAS15", IntegratorDOPRI},
		{"", IntegratorDOPRI},
		{"whfast", IntegratorSymplectic},
		{"leapfrog", IntegratorSymplectic},
		{"symplectic", IntegratorSymplectic},
	}
	for _, tt := range tests {
		got, err := ParseIntegrator(tt.in)
		if err != nil {
			t.Errorf("ParseIntegrator(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIntegrator(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseIntegrator("mercury"); err == nil {
		t.Error("ParseIntegrator(mercury) expected error")
	}
}

func TestMoveToCOM(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01}, 0.05, 1e-3)

	var mtot float64
	var rc Vec3
	for _, p := range sim.Particles() {
		mtot += p.Mass
		rc = rc.Add(p.Pos.Scale(p.Mass))
	}
	if rc.Norm()/mtot > 1e-15 {
		t.Errorf("centre of mass = %+v, want origin", rc.Scale(1/mtot))
	}
	if p := sim.Momentum(); p.Norm() > 1e-15 {
		t.Errorf("momentum = %+v, want zero", p)
	}
}

func TestAdvanceToLandsExactly(t *testing.T) {
	for _, integ := range []Integrator{IntegratorDOPRI, IntegratorSymplectic} {
		t.Run(integ.String(), func(t *testing.T) {
			sim := twoBody(t, Config{Timestep: 0.003, Integrator: integ}, 0.05, 1e-3)

			targets := []float64{0.0101, 0.5, 0.5, 1.23456789}
			for _, target := range targets {
				if err := sim.AdvanceTo(target); err != nil {
					t.Fatalf("AdvanceTo(%g) error = %v", target, err)
				}
				if sim.Time() != target {
					t.Errorf("Time() = %.17g, want %.17g", sim.Time(), target)
				}
			}
		})
	}
}

func TestDOPRIResizesAfterAdd(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01, Integrator: IntegratorDOPRI}, 0.05, 1e-3)
	if err := sim.AdvanceTo(0.5); err != nil {
		t.Fatalf("AdvanceTo(0.5) error = %v", err)
	}

	sim.Add(Particle{Mass: 1e-9, Pos: Vec3{X: 10}, Vel: Vec3{Y: 1e-3}})
	if err := sim.AdvanceTo(1.5); err != nil {
		t.Fatalf("AdvanceTo(1.5) after Add error = %v", err)
	}
	if got := sim.Particle(2).Pos.Y; math.Abs(got-1e-3) > 1e-9 {
		t.Errorf("added particle y = %g, want 1e-3", got)
	}
}

func TestAdvanceToBackward(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01}, 0.05, 1e-3)
	if err := sim.AdvanceTo(1); err != nil {
		t.Fatalf("AdvanceTo(1) error = %v", err)
	}
	if err := sim.AdvanceTo(0.5); !errors.Is(err, ErrBackward) {
		t.Errorf("AdvanceTo(0.5) error = %v, want ErrBackward", err)
	}
}

func TestCircularOrbitConservesEnergy(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		tol  float64
	}{
		{"dopri", Config{Timestep: 0.01, Integrator: IntegratorDOPRI}, 1e-7},
		{"leapfrog", Config{Timestep: 0.002, Integrator: IntegratorSymplectic, Order: 2}, 1e-5},
		{"yoshida4", Config{Timestep: 0.005, Integrator: IntegratorSymplectic, Order: 4}, 1e-6},
		{"yoshida6", Config{Timestep: 0.01, Integrator: IntegratorSymplectic, Order: 6}, 1e-6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := twoBody(t, tc.cfg, 0.05, 1e-3)
			e0 := sim.Energy()
			if err := sim.AdvanceTo(20); err != nil {
				t.Fatalf("AdvanceTo() error = %v", err)
			}
			rel := math.Abs((sim.Energy() - e0) / e0)
			if rel > tc.tol {
				t.Errorf("relative energy drift = %g, want <= %g", rel, tc.tol)
			}
		})
	}
}

func TestCircularOrbitPhase(t *testing.T) {
	a, mp := 0.05, 1e-3
	n := math.Sqrt(DefaultG * (1 + mp) / (a * a * a))

	sim := twoBody(t, Config{Timestep: 0.01}, a, mp)
	end := 10.0
	if err := sim.AdvanceTo(end); err != nil {
		t.Fatalf("AdvanceTo() error = %v", err)
	}

	rel := sim.Particle(1).Pos.Sub(sim.Particle(0).Pos)
	// The relative orbit started at phase -pi/2 in the x-z plane.
	phi := -math.Pi/2 + n*end
	want := Vec3{X: a * math.Sin(phi), Z: a * math.Cos(phi)}
	if d := rel.Sub(want).Norm(); d > 1e-7 {
		t.Errorf("relative position off by %g AU", d)
	}
}

func TestSnapshotRestoreIsReproducible(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01}, 0.05, 1e-3)
	if err := sim.AdvanceTo(1); err != nil {
		t.Fatal(err)
	}
	snap := sim.Snapshot()

	if err := sim.AdvanceTo(2); err != nil {
		t.Fatal(err)
	}
	first := sim.Particle(1)

	if err := sim.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if sim.Time() != 1 {
		t.Fatalf("Time() after restore = %g, want 1", sim.Time())
	}
	if err := sim.AdvanceTo(2); err != nil {
		t.Fatal(err)
	}
	if second := sim.Particle(1); second != first {
		t.Errorf("replayed state %+v differs from original %+v", second, first)
	}
}

func TestRestoreRejectsForeignSnapshot(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01}, 0.05, 1e-3)
	other, err := New(Config{Timestep: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	other.Add(Particle{Mass: 1})

	if err := sim.Restore(other.Snapshot()); !errors.Is(err, ErrIndex) {
		t.Errorf("Restore() error = %v, want ErrIndex", err)
	}
}

func TestStepObserverCalledPerStep(t *testing.T) {
	sim := twoBody(t, Config{Timestep: 0.01, Integrator: IntegratorSymplectic}, 0.05, 1e-3)

	var calls int64
	var lastTime float64
	sim.OnStep(StepFunc(func(s *Simulation) {
		calls++
		if s.Time() < lastTime {
			t.Errorf("observer saw time go backwards: %g < %g", s.Time(), lastTime)
		}
		lastTime = s.Time()
	}))

	if err := sim.AdvanceTo(1); err != nil {
		t.Fatal(err)
	}
	if calls != sim.Steps() {
		t.Errorf("observer calls = %d, want %d", calls, sim.Steps())
	}
	if calls != 100 {
		t.Errorf("steps = %d, want 100 fixed steps of 0.01", calls)
	}

	sim.OnStep(nil)
	if err := sim.AdvanceTo(1.5); err != nil {
		t.Fatal(err)
	}
	if calls != 100 {
		t.Errorf("observer called after being cleared")
	}
}

func TestNonFiniteStateFails(t *testing.T) {
	sim, err := New(Config{Timestep: 0.01, Integrator: IntegratorSymplectic})
	if err != nil {
		t.Fatal(err)
	}
	sim.Add(Particle{Mass: 1})
	sim.Add(Particle{Mass: 1})

	err = sim.AdvanceTo(1)
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("AdvanceTo() error = %v, want *StepError", err)
	}
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("AdvanceTo() error = %v, want ErrNonFinite", err)
	}
}
