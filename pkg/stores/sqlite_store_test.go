package stores

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestRun(t *testing.T, store *SQLiteStore, id, system string, startedAt time.Time) *Run {
	t.Helper()

	run := &Run{
		ID:        id,
		System:    system,
		Source:    system + ".yaml",
		Options:   `{"start":0,"end":100}`,
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check should fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected an error for an empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Check that tables exist by querying them
	for _, table := range []string{"runs", "transits", "events"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Migrating twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := createTestRun(t, store, "run-001", "koi-142", time.Now().UTC())

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if retrieved.System != "koi-142" || retrieved.Source != "koi-142.yaml" {
		t.Errorf("unexpected run %+v", retrieved)
	}
	if retrieved.Status != RunStatusRunning || retrieved.CompletedAt != nil {
		t.Errorf("new run should be running, got %s", retrieved.Status)
	}
	if retrieved.Options != run.Options {
		t.Errorf("expected Options %s, got %s", run.Options, retrieved.Options)
	}

	// Finish
	errMsg := "ambiguous crossing"
	if err := store.FinishRun(ctx, run.ID, RunStatusFailed, 7, &errMsg); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}
	if updated.Status != RunStatusFailed || updated.TransitCount != 7 {
		t.Errorf("expected failed run with 7 transits, got %s with %d", updated.Status, updated.TransitCount)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	if _, err := store.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a deleted run, got %v", err)
	}
	if err := store.DeleteRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
	if err := store.FinishRun(ctx, "missing", RunStatusCompleted, 0, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound finishing a missing run, got %v", err)
	}
}

func TestListRunsFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		system := "koi-142"
		if i%2 == 1 {
			system = "kepler-9"
		}
		createTestRun(t, store, fmt.Sprintf("run-%d", i), system, base.Add(time.Duration(i)*time.Hour))
	}
	if err := store.FinishRun(ctx, "run-4", RunStatusCompleted, 3, nil); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 runs, got %d", len(all))
	}
	if all[0].ID != "run-4" {
		t.Errorf("expected newest run first, got %s", all[0].ID)
	}

	system := "kepler-9"
	filtered, err := store.ListRuns(ctx, RunFilter{System: &system})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 kepler-9 runs, got %d", len(filtered))
	}

	status := RunStatusCompleted
	done, err := store.ListRuns(ctx, RunFilter{Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ID != "run-4" {
		t.Errorf("expected only run-4 completed, got %d", len(done))
	}

	page, err := store.ListRuns(ctx, RunFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "run-3" {
		t.Errorf("expected page run-3, run-2, got %d runs", len(page))
	}
}

func TestTransits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store, "run-t", "koi-142", time.Now().UTC())

	ttv := 0.002
	transits := []*Transit{
		{Body: "c", Epoch: 0, Time: 59.1},
		{Body: "b", Epoch: 0, Time: 55.0, TTV: &ttv},
		{Body: "b", Epoch: 1, Time: 65.9},
	}
	if err := store.SaveTransits(ctx, run.ID, transits); err != nil {
		t.Fatalf("failed to save transits: %v", err)
	}
	for _, tr := range transits {
		if tr.ID == 0 || tr.RunID != run.ID {
			t.Errorf("transit not updated after save: %+v", tr)
		}
	}

	got, err := store.ListTransits(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("failed to list transits: %v", err)
	}
	if len(got) != 3 || got[0].Body != "b" || got[1].Epoch != 1 || got[2].Body != "c" {
		t.Errorf("transits not ordered by body and epoch: %+v", got)
	}
	if got[0].TTV == nil || *got[0].TTV != ttv || got[1].TTV != nil {
		t.Error("TTV not stored faithfully")
	}

	body := "c"
	onlyC, err := store.ListTransits(ctx, run.ID, &body)
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyC) != 1 || onlyC[0].Time != 59.1 {
		t.Errorf("expected one transit for c, got %+v", onlyC)
	}

	// A duplicate epoch rolls back the whole batch.
	dup := []*Transit{{Body: "d", Epoch: 0, Time: 1}, {Body: "b", Epoch: 1, Time: 2}}
	if err := store.SaveTransits(ctx, run.ID, dup); err == nil {
		t.Fatal("expected an error for a duplicate epoch")
	}
	d := "d"
	if rows, _ := store.ListTransits(ctx, run.ID, &d); len(rows) != 0 {
		t.Error("failed batch should not leave rows behind")
	}

	// Transits need an existing run.
	if err := store.SaveTransits(ctx, "missing", []*Transit{{Body: "b", Time: 1}}); err == nil {
		t.Error("expected a foreign key error for a missing run")
	}

	// Deleting the run cascades.
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	if rows, _ := store.ListTransits(ctx, run.ID, nil); len(rows) != 0 {
		t.Errorf("expected transits to be deleted with their run, got %d", len(rows))
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store, "run-e", "koi-142", time.Now().UTC())

	body := "b"
	for i, level := range []EventLevel{EventLevelInfo, EventLevelDebug, EventLevelError} {
		event := &Event{RunID: &run.ID, Body: &body, Level: level, Message: fmt.Sprintf("event %d", i)}
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if event.ID == 0 || event.Timestamp.IsZero() {
			t.Errorf("event not filled in: %+v", event)
		}
	}
	if err := store.AppendEvent(ctx, &Event{Level: EventLevelWarning, Message: "global"}); err != nil {
		t.Fatal(err)
	}

	all, err := store.GetEvents(ctx, nil, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Message != "event 0" {
		t.Errorf("expected 4 events oldest first, got %d", len(all))
	}

	forRun, err := store.GetEvents(ctx, &run.ID, nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(forRun) != 3 {
		t.Errorf("expected 3 events for the run, got %d", len(forRun))
	}

	level := EventLevelError
	errs, err := store.GetEvents(ctx, &run.ID, &level, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].Message != "event 2" || errs[0].Body == nil || *errs[0].Body != "b" {
		t.Errorf("unexpected error events %+v", errs)
	}

	if err := store.AppendEvent(ctx, &Event{Level: "loud", Message: "bad"}); err == nil {
		t.Error("expected the level check constraint to reject an unknown level")
	}
}

func TestBackup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestRun(t, store, "run-b", "koi-142", time.Now().UTC())

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := store.Backup(ctx, dest); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if err := store.Backup(ctx, dest); err == nil {
		t.Error("backup should refuse to overwrite an existing file")
	}

	restored, err := Open(ctx, dest)
	if err != nil {
		t.Fatalf("failed to open backup: %v", err)
	}
	defer restored.Close()

	if _, err := restored.GetRun(ctx, "run-b"); err != nil {
		t.Errorf("backup is missing run-b: %v", err)
	}
}

func TestRecordScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	b := &transit.Body{Name: "b", TransitTimes: []float64{1, 2.01, 2.99, 4}}
	c := &transit.Body{Name: "c", TransitTimes: []float64{1.5}}
	star := &transit.Body{Name: "star"}

	run := createTestRun(t, store, "run-ok", "test", time.Now().UTC())
	if err := RecordScan(ctx, store, run.ID, []*transit.Body{star, b, c}, nil); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != RunStatusCompleted || got.TransitCount != 5 || got.Error != nil {
		t.Errorf("unexpected run after scan: %+v", got)
	}

	transits, err := store.ListTransits(ctx, run.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(transits) != 5 {
		t.Fatalf("expected 5 transits, got %d", len(transits))
	}
	if transits[1].TTV == nil || *transits[1].TTV < 0.005 {
		t.Errorf("expected a positive TTV for b #1, got %v", transits[1].TTV)
	}
	if transits[4].Body != "c" || transits[4].TTV != nil {
		t.Errorf("single transit should have no TTV: %+v", transits[4])
	}

	failed := createTestRun(t, store, "run-fail", "test", time.Now().UTC())
	scanErr := fmt.Errorf("scan: %w", transit.ErrCapacityExceeded)
	if err := RecordScan(ctx, store, failed.ID, []*transit.Body{star, c}, scanErr); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetRun(ctx, failed.ID)
	if got.Status != RunStatusFailed || got.Error == nil {
		t.Errorf("expected failed run with error, got %+v", got)
	}

	events, err := store.GetEvents(ctx, &failed.ID, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Level != EventLevelError || events[0].Details == nil {
		t.Errorf("expected one error event with details, got %+v", events)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want RunStatus
	}{
		{nil, RunStatusCompleted},
		{fmt.Errorf("scan: %w", context.Canceled), RunStatusCancelled},
		{context.DeadlineExceeded, RunStatusCancelled},
		{transit.ErrAmbiguousCrossing, RunStatusFailed},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestFinishRunPublishesTelemetry(t *testing.T) {
	store := setupTestStore(t)

	tel, err := telemetry.NewTelemetry(telemetry.TestConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	var stored []telemetry.Event
	tel.Events.Subscribe(func(e telemetry.Event) { stored = append(stored, e) }, telemetry.FilterByType(telemetry.EventTypeRunStored))

	ctx := tel.WithContext(context.Background())
	run := createTestRun(t, store, "run-tel", "koi-142", time.Now().UTC())
	if err := store.FinishRun(ctx, run.ID, RunStatusCompleted, 0, nil); err != nil {
		t.Fatal(err)
	}

	if len(stored) != 1 || stored[0].RunID != run.ID {
		t.Errorf("expected one run.stored event for %s, got %+v", run.ID, stored)
	}
}
