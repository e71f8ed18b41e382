package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/system"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

// validationReport is the --json form of validate.
type validationReport struct {
	Path     string                   `json:"path"`
	Valid    bool                     `json:"valid"`
	System   string                   `json:"system,omitempty"`
	Planets  int                      `json:"planets,omitempty"`
	Options  *transit.Options         `json:"options,omitempty"`
	Problems []system.ValidationError `json:"problems,omitempty"`
}

func newValidateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <system-file>",
		Short: "Validate a system file",
		Long: `Validate a system file without scanning it.

This command checks:
  - Syntax of the YAML, JSON, TOML or CUE document
  - Unknown and missing fields
  - Value ranges of masses, times and scan settings
  - That orbital elements describe bound orbits`,
		Example: `  # Validate a system
  ttvdevil validate koi142.yaml

  # Machine-readable problems with file positions
  ttvdevil validate system.cue --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			log.Debug().Str("path", path).Msg("Validating system")

			report := validationReport{Path: path}
			err := checkSystem(path, &report)
			report.Valid = err == nil

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if perr := writeJSON(out, report); perr != nil {
					return perr
				}
				if err != nil {
					return fmt.Errorf("%s is invalid", path)
				}
				return nil
			}

			if err != nil {
				fmt.Fprintf(out, "✗ %s has %d problems:\n", path, len(report.Problems))
				for _, p := range report.Problems {
					fmt.Fprintf(out, "  %s\n", p)
				}
				return fmt.Errorf("%s is invalid", path)
			}

			fmt.Fprintf(out, "✓ %s: system %s with %d planets, scan [%g, %g) days\n",
				path, report.System, report.Planets, report.Options.Start, report.Options.End)
			return nil
		},
	}

	return cmd
}

// checkSystem fills report from the system at path. Problems are reported
// as a *system.LoadError.
func checkSystem(path string, report *validationReport) error {
	cfg, err := system.Load(path)
	if err != nil {
		var loadErr *system.LoadError
		if errors.As(err, &loadErr) {
			report.Problems = loadErr.Errors
			return err
		}
		report.Problems = []system.ValidationError{{File: path, Message: err.Error()}}
		return &system.LoadError{Source: path, Errors: report.Problems}
	}
	report.System = cfg.Name
	report.Planets = len(cfg.Planets)

	opts, err := cfg.Options()
	if err == nil {
		err = opts.Validate()
	}
	if err == nil {
		_, err = cfg.Bodies()
	}
	if err != nil {
		report.Problems = []system.ValidationError{{File: path, Message: err.Error()}}
		return &system.LoadError{Source: path, Errors: report.Problems}
	}
	report.Options = &opts
	return nil
}
