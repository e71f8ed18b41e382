package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config selects how ttvdevil logs, traces, counts and publishes scans.
type Config struct {
	ServiceName    string `validate:"required"`
	ServiceVersion string `validate:"required"`
	Environment    string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn error fatal"`
	Format string `validate:"oneof=console json"`

	// Output is stdout, stderr, discard or a file path.
	Output string

	EnableCaller bool

	// Sampling keeps SamplingInitial messages per second, then every
	// SamplingThereafter-th.
	EnableSampling     bool
	SamplingInitial    int `validate:"gte=0"`
	SamplingThereafter int `validate:"gte=0"`

	TimeFormat string
}

// TracingConfig configures OpenTelemetry spans for scans and store calls.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none. An empty exporter means none.
	Exporter string `validate:"omitempty,oneof=otlp stdout none"`
	Endpoint string `validate:"required_if=Exporter otlp"`
	Insecure bool
	Headers  map[string]string

	SamplingRate       float64 `validate:"gte=0,lte=1"`
	MaxExportBatchSize int     `validate:"gte=0"`
	ExportTimeout      time.Duration
}

// MetricsConfig configures the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string `validate:"required_if=Enabled true"`
	Path          string
	Namespace     string

	// DefaultHistogramBuckets are scan duration buckets in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the scan event publisher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int `validate:"required_if=Enabled true,gte=0"`

	// With EnableAsync events are buffered and flushed every FlushInterval
	// in batches of at most MaxBatchSize.
	EnableAsync   bool
	FlushInterval time.Duration
	MaxBatchSize  int `validate:"required_if=EnableAsync true,gte=0"`
}

// DefaultConfig is what the CLI starts from before settings are applied:
// console logs on stderr, no tracing, in-memory metrics and synchronous
// events.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "ttvdevil",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			SamplingRate:       1,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "ttvdevil",
			// A scan runs from milliseconds to minutes.
			DefaultHistogramBuckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
		},
		Events: EventsConfig{
			Enabled:       true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
		},
	}
}

// TestConfig returns a configuration for tests: logs are discarded, tracing
// is off and events are delivered synchronously.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "test"
	cfg.Logging.Output = "discard"
	cfg.Logging.Format = "json"
	cfg.Events.FlushInterval = 0
	return cfg
}

// Validate reports every invalid field, one per line.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate telemetry config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid telemetry config: %s", strings.Join(msgs, "; "))
}
