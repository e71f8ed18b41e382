package system

import "github.com/ttvdevil/ttvdevil/pkg/nbody"

// KOI142 returns the KOI-142 system (Kepler-88): a 0.956 solar mass star
// with the strongly interacting planets b and c, scanned for 2000 days.
func KOI142() *Config {
	return &Config{
		Name:        "koi-142",
		Epoch:       54.627020,
		Duration:    2000,
		Timestep:    1 * Minute,
		SearchStep:  12 * Hour,
		Tolerance:   1 * Second,
		Integrator:  "ias15",
		MaxTransits: MaxTransits,
		Star:        Star{Name: "star", Mass: 0.956},
		Planets: []Planet{
			{
				Name:     "b",
				Mass:     0.00003398527,
				Position: &nbody.Vec3{X: 2.468048754640008e-02, Y: 1.430942213992328e-03, Z: 9.273805877239813e-02},
				Velocity: &nbody.Vec3{X: -5.284347573571933e-02, Y: 1.696196988487972e-04, Z: 1.099289785917278e-02},
			},
			{
				Name:     "c",
				Mass:     0.00061365001,
				Position: &nbody.Vec3{X: 1.290927890560793e-01, Y: -6.260295033163559e-03, Z: -6.524922742997734e-02},
				Velocity: &nbody.Vec3{X: 1.952208933275210e-02, Y: 2.894719946941922e-03, Z: 4.081951683817600e-02},
			},
		},
	}
}

// Circular returns a one-planet system on an edge-on circular orbit that
// transits first at t0 and then every period days.
func Circular(name string, mstar, mplanet, period, t0, duration float64) *Config {
	t := t0
	return &Config{
		Name:        name,
		Duration:    duration,
		MaxTransits: MaxTransits,
		Star:        Star{Name: "star", Mass: mstar},
		Planets: []Planet{{
			Name: "b",
			Mass: mplanet,
			Elements: &Elements{
				Period: period,
				Inc:    90,
				T0:     &t,
			},
		}},
	}
}
