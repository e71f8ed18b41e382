package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type reload struct {
	cfg *Config
	err error
}

func TestWatchReloadsOnChange(t *testing.T) {
	old := ReloadDelay
	ReloadDelay = 20 * time.Millisecond

	dir := t.TempDir()
	path := filepath.Join(dir, "kepler-9.yaml")
	if err := os.WriteFile(path, []byte(yamlSystem), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reloads := make(chan reload, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			reloads <- reload{cfg, err}
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		ReloadDelay = old
	})

	next := func() reload {
		t.Helper()
		select {
		case r := <-reloads:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a reload")
			return reload{}
		}
	}

	first := next()
	if first.err != nil || first.cfg.Duration != 100 {
		t.Fatalf("initial load = %+v", first)
	}

	// The watcher registers before the initial load, so this write is seen.
	updated := strings.Replace(yamlSystem, "duration: 100", "duration: 250", 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}
	for {
		r := next()
		if r.err == nil && r.cfg.Duration == 250 {
			break
		}
	}

	if err := os.WriteFile(path, []byte("name: [broken"), 0644); err != nil {
		t.Fatal(err)
	}
	for {
		if r := next(); r.err != nil {
			break
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "system.yaml"), func(*Config, error) {
		t.Error("fn should not run when the directory cannot be watched")
	})
	if err == nil {
		t.Error("Watch() should fail for a missing directory")
	}
}
