package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
)

const defaultDBPath = "ttvdevil.db"

// Settings holds the CLI configuration. Values come from ttvdevil.yaml,
// TTVDEVIL_* environment variables and flags, in increasing precedence.
type Settings struct {
	DB        string          `mapstructure:"db"`
	LogLevel  string          `mapstructure:"log_level"`
	LogOutput string          `mapstructure:"log_output"`
	Metrics   MetricsSettings `mapstructure:"metrics"`
	Tracing   TracingSettings `mapstructure:"tracing"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// TracingSettings configures span export.
type TracingSettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	Endpoint     string  `mapstructure:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", defaultDBPath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("tracing.insecure", true)
}

// loadSettings reads the config file, if any, and the environment. An
// explicit configPath must exist; the default ttvdevil.yaml is optional.
func loadSettings(v *viper.Viper, configPath string) (Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix("TTVDEVIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("ttvdevil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return s, nil
}

func (s Settings) telemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Logging.Level = s.LogLevel
	cfg.Logging.Output = s.LogOutput

	cfg.Metrics.ListenAddress = s.Metrics.Addr
	cfg.Metrics.Path = s.Metrics.Path
	if s.Metrics.Addr == "" {
		// Collect in memory only.
		cfg.Metrics.ListenAddress = ":0"
	}

	cfg.Tracing.Enabled = s.Tracing.Enabled
	cfg.Tracing.Exporter = s.Tracing.Exporter
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate
	cfg.Tracing.Insecure = s.Tracing.Insecure
	return cfg
}
