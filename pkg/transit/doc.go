// Package transit locates planetary transits in an N-body integration.
//
// The sky frame puts the observer on the +z axis. A body transits when its x
// offset from the star (body 0) changes sign while it is in front of the star
// (z > 0). The scanner advances the system in coarse search steps, flags
// sign changes and refines each one by bisection to the requested tolerance.
// Crossings behind the star (occultations) are never reported.
//
//	bodies := []*transit.Body{star, b, c}
//	opts := transit.DefaultOptions()
//	opts.End = 2000
//	if err := transit.Compute(ctx, bodies, opts); err != nil {
//	    return err
//	}
//	fmt.Println(b.TransitTimes, b.TTVs())
//
// Errors are *ScanError values classified as precondition, numerical or
// integrator failures. Transits recorded before an error remain valid.
package transit
