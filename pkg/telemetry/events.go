package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted during a scan.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Body is the associated body name, if applicable.
	Body string `json:"body,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeScanStarted     = "scan.started"
	EventTypeScanCompleted   = "scan.completed"
	EventTypeScanFailed      = "scan.failed"
	EventTypeTransitDetected = "transit.detected"
	EventTypeRunStored       = "run.stored"
	EventTypeSystemReloaded  = "system.reloaded"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers. In synchronous mode the
// subscribers run on the caller's goroutine before Publish returns.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishScanStarted publishes a scan started event.
func (ep *EventPublisher) PublishScanStarted(bodies int, start, end float64) error {
	return ep.Publish(Event{
		Type:    EventTypeScanStarted,
		Source:  "scanner",
		Message: fmt.Sprintf("Scan of %d bodies over [%g, %g) started", bodies, start, end),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"bodies": bodies,
			"start":  start,
			"end":    end,
		},
	})
}

// PublishScanCompleted publishes a scan completed event.
func (ep *EventPublisher) PublishScanCompleted(transits int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeScanCompleted,
		Source:  "scanner",
		Message: fmt.Sprintf("Scan completed with %d transits", transits),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"transits": transits,
			"duration": duration.Seconds(),
		},
	})
}

// PublishScanFailed publishes a scan failed event.
func (ep *EventPublisher) PublishScanFailed(reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeScanFailed,
		Source:  "scanner",
		Message: fmt.Sprintf("Scan failed: %s", reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTransitDetected publishes a transit detected event.
func (ep *EventPublisher) PublishTransitDetected(body string, number int, at float64) error {
	return ep.Publish(Event{
		Type:    EventTypeTransitDetected,
		Source:  "scanner",
		Body:    body,
		Message: fmt.Sprintf("Transit %d of %s at t=%.8f", number, body, at),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"number": number,
			"time":   at,
		},
	})
}

// PublishRunStored publishes an event once a run has been persisted.
func (ep *EventPublisher) PublishRunStored(runID, status string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStored,
		Source:  "store",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s stored with status %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status": status,
		},
	})
}

// PublishSystemReloaded publishes an event when a watched system file changes.
func (ep *EventPublisher) PublishSystemReloaded(path string) error {
	return ep.Publish(Event{
		Type:    EventTypeSystemReloaded,
		Source:  "watcher",
		Message: fmt.Sprintf("System file %s reloaded", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously. Batches
// are delivered when full, when the flush interval elapses and on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = batch[:0]
			}

		case <-tick:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ep.ctx.Done():
			// Drain whatever is still buffered before shutting down
		drain:
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByBody creates a filter that only allows events for a specific body.
func FilterByBody(body string) EventFilter {
	return func(event Event) bool {
		return event.Body == body
	}
}
