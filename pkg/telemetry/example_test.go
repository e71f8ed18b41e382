package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_eventPublishing demonstrates synchronous event delivery.
func Example_eventPublishing() {
	tel, err := telemetry.NewTelemetry(telemetry.TestConfig())
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("%s %s\n", event.Type, event.Body)
	}, telemetry.FilterByType(telemetry.EventTypeTransitDetected))

	_ = tel.Events.PublishScanStarted(2, 0, 10)
	_ = tel.Events.PublishTransitDetected("b", 0, 1.25)
	_ = tel.Events.PublishTransitDetected("c", 0, 3.5)
	_ = tel.Events.PublishScanCompleted(2, time.Second)

	// Output:
	// transit.detected b
	// transit.detected c
}

// Example_instrumentedOperation demonstrates wrapping an operation.
func Example_instrumentedOperation() {
	tel, _ := telemetry.NewTelemetry(telemetry.TestConfig())
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	op := telemetry.StartOperation(ctx, "transit.compute",
		telemetry.AttrIntegrator.String("dopri"),
		attribute.Int("bodies", 3),
	)
	op.Logger.Info("scanning")

	var err error
	defer op.End(err)

	fmt.Println(op.Timer.Duration() >= 0)
	// Output: true
}

// Example_eventFiltering demonstrates level filters.
func Example_eventFiltering() {
	tel, _ := telemetry.NewTelemetry(telemetry.TestConfig())
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Println(event.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelError))

	_ = tel.Events.PublishScanCompleted(4, time.Second)
	_ = tel.Events.PublishScanFailed("integration failed")

	// Output: Scan failed: integration failed
}
