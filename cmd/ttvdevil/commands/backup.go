package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBackupCommand(a *app) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup the run database",
		Long: `Create a consistent copy of the run database while it may be in use.

The copy is a compacted SQLite database that can replace the original or be
opened with --db.`,
		Example: `  # Backup to the default file
  ttvdevil backup

  # Backup to a dated file
  ttvdevil backup --out runs-$(date +%F).db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("db", a.cfg.DB).
				Str("out", outFile).
				Msg("Creating backup")

			if _, err := os.Stat(outFile); !errors.Is(err, fs.ErrNotExist) {
				if err == nil {
					return fmt.Errorf("%s already exists", outFile)
				}
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Backup(ctx, outFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Backed up %s to %s\n", a.cfg.DB, outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "ttvdevil-backup.db", "backup output file")

	return cmd
}
