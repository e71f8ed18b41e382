package system

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
)

// Schema is the CUE definition every .cue system file is unified with.
// Definitions are closed, so unknown fields are rejected.
const Schema = `
#Vec3: {
	x: number | *0
	y: number | *0
	z: number | *0
}

#Elements: {
	period?:       number & >0
	a?:            number & >0
	e?:            number & >=0 & <1
	inc?:          number & >=0 & <=180
	omega?:        number
	node?:         number
	t0?:           number
	mean_anomaly?: number
}

#Planet: {
	name:      string & !=""
	mass:      number & >=0
	position?: #Vec3
	velocity?: #Vec3
	elements?: #Elements
}

#Star: {
	name?: string
	mass:  number & >0
}

#System: {
	name:          string & !=""
	t_start:       number | *0
	duration?:     number & >=0
	t_end?:        number
	timestep?:     number & >0
	search_step?:  number & >0
	tolerance?:    number & >0
	integrator?:   "dopri" | "rk45" | "ias15" | "symplectic" | "leapfrog" | "whfast"
	order?:        2 | 4 | 6
	g?:            number & >0
	max_transits?: int & >=0
	star:          #Star
	planets: [...#Planet]
}
`

const schemaFile = "system_schema.cue"

// cueRuntime holds the compiled schema. A cue.Context is not safe for
// concurrent use, so access is serialized.
type cueRuntime struct {
	mu     sync.Mutex
	ctx    *cue.Context
	system cue.Value
}

var (
	cueOnce sync.Once
	cueRT   *cueRuntime
	cueErr  error
)

func compiledSchema() (*cueRuntime, error) {
	cueOnce.Do(func() {
		ctx := cuecontext.New()
		schema := ctx.CompileString(Schema, cue.Filename(schemaFile))
		if err := schema.Err(); err != nil {
			cueErr = fmt.Errorf("failed to compile system schema: %w", err)
			return
		}
		cueRT = &cueRuntime{
			ctx:    ctx,
			system: schema.LookupPath(cue.ParsePath("#System")),
		}
	})
	return cueRT, cueErr
}

func decodeCUE(data []byte, name string, cfg *Config) []ValidationError {
	rt, err := compiledSchema()
	if err != nil {
		return []ValidationError{{Message: err.Error()}}
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	val := rt.ctx.CompileBytes(data, cue.Filename(name))
	if err := val.Err(); err != nil {
		return convertCUEErrors(err)
	}

	unified := rt.system.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	if err := unified.Decode(cfg); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// convertCUEErrors flattens a CUE error into positioned validation errors.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range errors.Errors(err) {
		ve := ValidationError{Message: errors.Details(e, nil)}
		// Prefer a position in the system file over one in the schema.
		for i, pos := range errors.Positions(e) {
			if i > 0 && pos.Filename() == schemaFile {
				continue
			}
			ve.File = pos.Filename()
			ve.Line = pos.Line()
			ve.Column = pos.Column()
			if pos.Filename() != schemaFile {
				break
			}
		}
		ve.Path = strings.Join(e.Path(), ".")
		out = append(out, ve)
	}
	return out
}

func encodeCUE(cfg *Config) ([]byte, error) {
	// JSON is valid CUE, so the JSON form compiles directly.
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode system: %w", err)
	}

	rt, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	val := rt.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode system: %w", err)
	}
	out, err := format.Node(val.Syntax(cue.Concrete(true)))
	if err != nil {
		return nil, fmt.Errorf("failed to format cue: %w", err)
	}
	return out, nil
}
