// Package telemetry provides observability instrumentation for ttvdevil.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a single value
// that is carried through a context.Context.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with stdout and OTLP exporters
//  3. Metrics Collection - Prometheus metrics for scans and detections
//  4. Event Publishing - Scan and transit events for audit and persistence
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Libraries never require telemetry. Without it in the context, StartOperation
// returns a logger backed by the process-wide zerolog logger and spans,
// metrics and events are skipped.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("scanner")
//	logger = logger.WithRunID(runID).WithBody("b")
//	logger.Debugf("transit %d at %.6f", n, t)
//
// # Metrics
//
// Key metrics exposed (namespace "ttvdevil"):
//
//   - ttvdevil_scans_total{integrator,status}
//   - ttvdevil_scan_duration_seconds{integrator}
//   - ttvdevil_active_scans
//   - ttvdevil_transits_detected_total{body}
//   - ttvdevil_bisection_iterations
//   - ttvdevil_integrator_steps_total{integrator}
//   - ttvdevil_errors_by_class_total{class}
//   - ttvdevil_errors_by_code_total{code}
//   - ttvdevil_runs_stored_total{status}
//
// Metrics are exposed via HTTP when the metrics server is started.
//
// # Event Publishing
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeTransitDetected))
//
// Events are delivered synchronously unless EventsConfig.EnableAsync is set,
// in which case they are buffered and flushed in batches.
//
// # Graceful Shutdown
//
// Shut down telemetry to flush buffered events and pending spans:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	_ = tel.Shutdown(ctx)
package telemetry
