package system

import (
	"math"
	"testing"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
)

func TestKOI142(t *testing.T) {
	cfg := KOI142()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bodies, err := cfg.Bodies()
	if err != nil {
		t.Fatalf("Bodies() error = %v", err)
	}
	if len(bodies) != 3 {
		t.Fatalf("got %d bodies, want star, b and c", len(bodies))
	}
	if bodies[0].Mass != 0.956 || bodies[0].Position != (nbody.Vec3{}) {
		t.Errorf("star = %+v", bodies[0])
	}
	if bodies[1].Name != "b" || bodies[1].Capacity != MaxTransits {
		t.Errorf("planet b = %+v", bodies[1])
	}
	if bodies[2].Velocity.Z != 4.081951683817600e-02 {
		t.Errorf("planet c vz = %g", bodies[2].Velocity.Z)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	if opts.Start != 54.627020 || math.Abs(opts.End-2054.627020) > 1e-9 {
		t.Errorf("range = [%g, %g)", opts.Start, opts.End)
	}
	if opts.Integrator != nbody.IntegratorDOPRI || opts.Tolerance != Second || opts.SearchStep != 0.5 {
		t.Errorf("Options() = %+v", opts)
	}
}

func TestCircular(t *testing.T) {
	cfg := Circular("hot-jupiter", 1, 1e-3, 4, 1, 20)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bodies, err := cfg.Bodies()
	if err != nil {
		t.Fatalf("Bodies() error = %v", err)
	}
	p := bodies[1]
	a := cfg.Planets[0].Elements.SemiMajorAxis(nbody.DefaultG * 1.001)
	if math.Abs(p.Position.Norm()-a) > 1e-12 {
		t.Errorf("|r| = %g, want circular radius %g", p.Position.Norm(), a)
	}
	if math.Abs(p.Position.Dot(p.Velocity)) > 1e-15 {
		t.Errorf("r.v = %g, want 0 on a circular orbit", p.Position.Dot(p.Velocity))
	}
}
