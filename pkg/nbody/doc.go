// Package nbody integrates a small set of point masses under mutual Newtonian
// gravity.
//
// A Simulation owns the clock and the particle state. Callers add particles,
// optionally move to the centre-of-mass frame, and then advance the clock
// forward with AdvanceTo, which always lands exactly on the requested time:
//
//	sim, err := nbody.New(nbody.Config{Timestep: 0.01, Integrator: nbody.IntegratorDOPRI})
//	if err != nil {
//	    return err
//	}
//	sim.Add(nbody.Particle{Mass: 1})
//	sim.Add(nbody.Particle{Mass: 1e-3, Pos: nbody.Vec3{X: 0.05}, Vel: nbody.Vec3{Z: 0.077}})
//	sim.MoveToCOM()
//	if err := sim.AdvanceTo(10); err != nil {
//	    return err
//	}
//
// Two schemes are available. IntegratorDOPRI is an adaptive Dormand-Prince
// 5(4) Runge-Kutta method whose step is controlled by RelTol and AbsTol.
// IntegratorSymplectic is a fixed-step kick-drift-kick leapfrog composed with
// Yoshida weights to order 2, 4 or 6.
//
// The clock only moves forward. To revisit an earlier time take a Snapshot
// first and Restore it later.
//
// Units are days, AU and solar masses unless Config.G says otherwise.
package nbody
