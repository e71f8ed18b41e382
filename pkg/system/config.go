package system

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ttvdevil/ttvdevil/pkg/nbody"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field paths the way they are spelled in system files.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyDefaults fills unset scan settings from transit.DefaultOptions.
func (c *Config) ApplyDefaults() {
	def := transit.DefaultOptions()
	if c.Timestep == 0 {
		c.Timestep = def.Timestep
	}
	if c.SearchStep == 0 {
		c.SearchStep = def.SearchStep
	}
	if c.Tolerance == 0 {
		c.Tolerance = def.Tolerance
	}
	if c.Integrator == "" {
		c.Integrator = def.Integrator.String()
	}
	if c.Order == 0 {
		c.Order = def.Order
	}
	if c.G == 0 {
		c.G = def.G
	}
	if c.Star.Name == "" {
		c.Star.Name = "star"
	}
}

// EndTime returns the absolute end of the scan.
func (c *Config) EndTime() float64 {
	if c.End != 0 {
		return c.End
	}
	return c.Epoch + c.Duration
}

// Validate checks the configuration and returns a *LoadError listing every
// problem found.
func (c *Config) Validate() error {
	var errs []ValidationError

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate system: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Path:    trimNamespace(fe.Namespace()),
				Message: fieldMessage(fe),
			})
		}
	}

	if c.EndTime() <= c.Epoch {
		errs = append(errs, ValidationError{
			Path:    "t_end",
			Message: fmt.Sprintf("scan must end after t_start %g; set duration or t_end", c.Epoch),
		})
	}

	seen := make(map[string]int, len(c.Planets))
	for i, p := range c.Planets {
		if p.Name == "" {
			continue
		}
		if j, ok := seen[p.Name]; ok {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("planets[%d].name", i),
				Message: fmt.Sprintf("duplicate planet name %q (also planets[%d])", p.Name, j),
			})
			continue
		}
		seen[p.Name] = i
	}

	if len(errs) > 0 {
		return &LoadError{Source: c.Name, Errors: errs}
	}
	return nil
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", strings.ToLower(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("cannot be combined with %s", strings.ToLower(fe.Param()))
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Options returns the scan options described by the configuration.
func (c *Config) Options() (transit.Options, error) {
	integrator, err := nbody.ParseIntegrator(c.Integrator)
	if err != nil {
		return transit.Options{}, err
	}
	opts := transit.DefaultOptions()
	opts.Start = c.Epoch
	opts.End = c.EndTime()
	opts.Integrator = integrator
	if c.Timestep > 0 {
		opts.Timestep = c.Timestep
	}
	if c.SearchStep > 0 {
		opts.SearchStep = c.SearchStep
	}
	if c.Tolerance > 0 {
		opts.Tolerance = c.Tolerance
	}
	if c.Order > 0 {
		opts.Order = c.Order
	}
	if c.G > 0 {
		opts.G = c.G
	}
	return opts, nil
}

// Bodies builds the scan bodies: the star at rest at the origin followed by
// the planets in file order.
func (c *Config) Bodies() ([]*transit.Body, error) {
	g := c.G
	if g == 0 {
		g = nbody.DefaultG
	}

	bodies := make([]*transit.Body, 0, len(c.Planets)+1)
	bodies = append(bodies, &transit.Body{Name: c.Star.Name, Mass: c.Star.Mass})

	for i, p := range c.Planets {
		b := &transit.Body{Name: p.Name, Mass: p.Mass, Capacity: c.MaxTransits}
		switch {
		case p.Elements != nil:
			pos, vel, err := p.Elements.State(g*(c.Star.Mass+p.Mass), c.Epoch)
			if err != nil {
				return nil, fmt.Errorf("planet %s: %w", planetLabel(i, p.Name), err)
			}
			b.Position, b.Velocity = pos, vel
		case p.Position != nil && p.Velocity != nil:
			b.Position, b.Velocity = *p.Position, *p.Velocity
		default:
			return nil, fmt.Errorf("planet %s: needs a position and velocity or elements", planetLabel(i, p.Name))
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

func planetLabel(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("#%d", i)
	}
	return name
}
