// Package system loads planetary system definitions for transit scans.
//
// # Overview
//
// A system file names a star, its planets and the scan settings. Planets are
// given either as a Cartesian state relative to the star or as Keplerian
// elements in the sky frame, where the observer looks down the z axis:
//
//	name: kepler-9
//	t_start: 0
//	duration: 400
//	search_step: 0.5
//	star: {mass: 1.0}
//	planets:
//	  - name: b
//	    mass: 0.00025
//	    elements: {period: 19.24, inc: 90, t0: 2.1}
//
// # Formats
//
// Load picks the decoder from the file extension:
//
//   - .yaml, .yml and .json with gopkg.in/yaml.v3
//   - .toml with github.com/pelletier/go-toml/v2
//   - .cue with cuelang.org/go, unified with the #System definition in Schema
//
// Unknown fields are rejected in every format. Decoded systems get defaults
// from transit.DefaultOptions and are validated with validator/v10; every
// problem is reported in a single *LoadError.
//
// # Scanning
//
//	cfg, err := system.Load("kepler-9.yaml")
//	if err != nil {
//	    return err
//	}
//	bodies, err := cfg.Bodies()
//	if err != nil {
//	    return err
//	}
//	opts, err := cfg.Options()
//	if err != nil {
//	    return err
//	}
//	err = transit.Compute(ctx, bodies, opts)
//
// Watch reloads a file whenever it changes.
package system
