package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ttvdevil/ttvdevil/pkg/system"
)

const settingsTemplate = `# ttvdevil configuration

# Run database
db: %s

log_level: info

metrics:
  # Listen address for /metrics; empty disables the endpoint
  addr: ""

tracing:
  enabled: false
  exporter: stdout
`

func newInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an example system and initialize the run database",
		Long: `Write the KOI-142 system as an example system file and create the run database.

The file format follows the extension of path: .yaml, .yml, .json, .toml or .cue.
A ttvdevil.yaml config file is written next to the current directory unless one
is already present or --config names another.`,
		Example: `  # Example system in YAML
  ttvdevil init

  # Same system as CUE, replacing an existing file
  ttvdevil init systems/koi142.cue --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "koi142.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			log.Info().
				Str("path", path).
				Str("db", a.cfg.DB).
				Msg("Initializing workspace")

			format, err := system.FormatFromPath(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := system.Encode(system.KOI142(), format)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write system file: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote example system: %s\n", path)

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Initialized run database: %s\n", a.cfg.DB)

			settingsPath := a.configPath
			if settingsPath == "" {
				settingsPath = "ttvdevil.yaml"
			}
			if _, err := os.Stat(settingsPath); errors.Is(err, fs.ErrNotExist) {
				content := fmt.Sprintf(settingsTemplate, a.cfg.DB)
				if err := os.WriteFile(settingsPath, []byte(content), 0644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", settingsPath)
			}

			fmt.Fprintf(out, "\nNext steps:\n")
			fmt.Fprintf(out, "  ttvdevil compute %s --save\n", path)
			fmt.Fprintf(out, "  ttvdevil ttv %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing system file")

	return cmd
}
