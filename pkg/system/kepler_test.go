package system

import (
	"context"
	"math"
	"testing"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

func TestSolveKepler(t *testing.T) {
	for _, e := range []float64{0, 0.1, 0.5, 0.9, 0.99} {
		for _, m := range []float64{-3, -1, 0, 0.2, 1.5, 3.1, 7} {
			ea, err := solveKepler(m, e)
			if err != nil {
				t.Fatalf("solveKepler(%g, %g) error = %v", m, e, err)
			}
			want := math.Remainder(m, 2*math.Pi)
			if got := ea - e*math.Sin(ea); math.Abs(got-want) > 1e-12 {
				t.Errorf("e=%g M=%g: E - e sin E = %g, want %g", e, m, got, want)
			}
		}
	}
}

func TestElementsStateVisViva(t *testing.T) {
	const mu = nbody.DefaultG * 1.001
	el := Elements{A: 0.3, E: 0.4, Inc: 60, Omega: 40, Node: 20, MeanAnomaly: 75}

	pos, vel, err := el.State(mu, 0)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	r := pos.Norm()
	if r < 0.3*0.6-1e-12 || r > 0.3*1.4+1e-12 {
		t.Errorf("r = %g outside [q, Q]", r)
	}
	v2 := vel.Dot(vel)
	want := mu * (2/r - 1/el.A)
	if math.Abs(v2-want)/want > 1e-12 {
		t.Errorf("v^2 = %g, vis-viva wants %g", v2, want)
	}

	// The angular momentum is normal to the orbital plane.
	h := pos.Cross(vel)
	inc := math.Acos(h.Z/h.Norm()) / deg
	if math.Abs(inc-60) > 1e-9 {
		t.Errorf("inclination from state = %g, want 60", inc)
	}
}

func TestElementsPeriodSetsAxis(t *testing.T) {
	const mu = nbody.DefaultG
	el := Elements{Period: 10.95, A: 99}
	a := el.SemiMajorAxis(mu)
	if p := 2 * math.Pi * math.Sqrt(a*a*a/mu); math.Abs(p-10.95) > 1e-12 {
		t.Errorf("period from axis = %g, want 10.95", p)
	}
}

func TestElementsAtTransit(t *testing.T) {
	const (
		mu = nbody.DefaultG
		a  = 0.05
	)
	t0 := 3.0
	el := Elements{A: a, Inc: 90, T0: &t0}

	pos, vel, err := el.State(mu, t0)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if math.Abs(pos.X) > 1e-12 || math.Abs(pos.Z-a) > 1e-12 {
		t.Errorf("position at T0 = %+v, want in front of the star on +z", pos)
	}
	if vel.X >= 0 {
		t.Errorf("vx at T0 = %g, planet should cross x = 0", vel.X)
	}
}

func TestElementsRejectBadOrbits(t *testing.T) {
	tests := []struct {
		name string
		el   Elements
		mu   float64
	}{
		{name: "no size", el: Elements{Inc: 90}, mu: nbody.DefaultG},
		{name: "hyperbolic", el: Elements{A: 1, E: 1.2}, mu: nbody.DefaultG},
		{name: "no mass", el: Elements{A: 1}, mu: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.el.State(tt.mu, 0); err == nil {
				t.Error("State() should fail")
			}
		})
	}
}

// Scanning a planet placed by its elements recovers the transit times it was
// placed with.
func TestScanRecoversElementTransits(t *testing.T) {
	tests := []struct {
		name string
		el   Elements
	}{
		{name: "circular", el: Elements{Period: 3, Inc: 90}},
		{name: "eccentric", el: Elements{Period: 3, E: 0.1, Omega: 30, Inc: 90}},
		{name: "inclined", el: Elements{Period: 3, E: 0.05, Omega: -50, Inc: 89}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t0 := 2.0
			el := tt.el
			el.T0 = &t0
			cfg := &Config{
				Name:       "elements",
				Duration:   12,
				SearchStep: 0.1,
				Star:       Star{Name: "star", Mass: 1},
				Planets:    []Planet{{Name: "b", Mass: 1e-6, Elements: &el}},
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			bodies, err := cfg.Bodies()
			if err != nil {
				t.Fatalf("Bodies() error = %v", err)
			}
			opts, err := cfg.Options()
			if err != nil {
				t.Fatalf("Options() error = %v", err)
			}
			if err := transit.Compute(context.Background(), bodies, opts); err != nil {
				t.Fatalf("Compute() error = %v", err)
			}

			got := bodies[1].TransitTimes
			want := []float64{2, 5, 8, 11}
			if len(got) != len(want) {
				t.Fatalf("transits = %v, want %v", got, want)
			}
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-5 {
					t.Errorf("transit %d at %.7f, want %g", i, got[i], want[i])
				}
			}
		})
	}
}
