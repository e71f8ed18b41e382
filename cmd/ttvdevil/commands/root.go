package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ttvdevil/ttvdevil/pkg/stores"
	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	version  string
	settings *viper.Viper
	cfg      Settings

	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	tel     *telemetry.Telemetry
	metrics *http.Server
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	a := &app{version: version, settings: viper.New()}
	defer a.close()
	return newRootCommand(a, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(a *app, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ttvdevil",
		Short: "ttvdevil - transit timing for N-body planetary systems",
		Long: `ttvdevil integrates a planetary system and records every transit of every
planet across its star, refining each one by bisection to a set tolerance.

Features:
  - Systems in YAML, TOML, JSON or CUE, given as states or orbital elements
  - Adaptive, high-order and symplectic integrators
  - Transit timing variations against a fitted linear ephemeris
  - Run history in SQLite
  - Prometheus metrics and OpenTelemetry tracing`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", a.version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Persistent flags available to all commands
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ./ttvdevil.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&a.jsonOutput, "json", false, "output in JSON format")
	flags.String("db", defaultDBPath, "run database path")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = a.settings.BindPFlag("db", flags.Lookup("db"))
	_ = a.settings.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))

	rootCmd.AddCommand(newComputeCommand(a))
	rootCmd.AddCommand(newTTVCommand(a))
	rootCmd.AddCommand(newInitCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))
	rootCmd.AddCommand(newRunsCommand(a))
	rootCmd.AddCommand(newBackupCommand(a))

	return rootCmd
}

// setup loads settings and installs telemetry into the command context.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadSettings(a.settings, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	tcfg := cfg.telemetryConfig(a.version)
	if a.verbose {
		tcfg.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	a.tel = tel

	if cfg.Metrics.Addr != "" {
		srv, err := tel.StartMetricsServer()
		if err != nil {
			return err
		}
		a.metrics = srv
		log.Info().Str("addr", srv.Addr).Msg("Serving metrics")
	}

	cmd.SetContext(tel.WithContext(cmd.Context()))
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}
}

// openStore opens and migrates the run database.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.Open(ctx, a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database %s: %w", a.cfg.DB, err)
	}
	return store, nil
}
