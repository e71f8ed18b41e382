package transit

import (
	"github.com/ttvdevil/ttvdevil/pkg/nbody"
)

// bisect narrows [tLo, tHi] around the sign change of body p's x offset
// until it is no wider than the tolerance, and returns the bracket midpoint.
// xLo is the offset at tLo and from is a snapshot taken at tLo.
//
// The integrator only moves forward, so the lower end of the bracket is
// kept as a checkpoint and restored whenever the clock has passed it.
func (s *Scanner) bisect(sim *nbody.Simulation, from nbody.Snapshot, p int, xLo, tLo, tHi float64) (t float64, iters int, width float64, err error) {
	checkpoint := from
	limit := s.opts.maxIterations(tHi - tLo)

	for tHi-tLo > s.opts.Tolerance {
		if iters >= limit {
			return 0, iters, tHi - tLo, newError(ErrorClassNumerical, CodeAmbiguousCrossing,
				"bisection did not converge after %d iterations (bracket %g)", iters, tHi-tLo).
				WithDetail("bracket_low", s.opts.Start+tLo).
				WithDetail("bracket_high", s.opts.Start+tHi)
		}

		mid := 0.5 * (tLo + tHi)
		if mid <= tLo || mid >= tHi {
			return 0, iters, tHi - tLo, newError(ErrorClassNumerical, CodeAmbiguousCrossing,
				"bracket [%g, %g] cannot be split further", s.opts.Start+tLo, s.opts.Start+tHi)
		}

		if sim.Time() != tLo {
			if err := sim.Restore(checkpoint); err != nil {
				return 0, iters, tHi - tLo, integratorFailure(err)
			}
		}
		if err := sim.AdvanceTo(mid); err != nil {
			return 0, iters, tHi - tLo, integratorFailure(err)
		}
		iters++

		x := relativeSky(sim, p).x
		if x*xLo > 0 {
			tLo, xLo = mid, x
			checkpoint = sim.Snapshot()
		} else {
			tHi = mid
		}
	}

	return 0.5 * (tLo + tHi), iters, tHi - tLo, nil
}
