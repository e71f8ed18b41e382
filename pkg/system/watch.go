package system

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
)

// ReloadDelay is how long Watch waits for a burst of writes to settle.
var ReloadDelay = 500 * time.Millisecond

// Watch loads the system at path and passes it to fn, then does so again
// after every change to the file until ctx is done. Load failures are handed
// to fn rather than ending the watch. fn runs on the calling goroutine.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("system").WithField("path", path)
	logger.Info("Watching system file")

	fn(Load(path))

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debugf("System file changed (%s)", event.Op)

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(ReloadDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := Load(path)
			if err != nil {
				logger.WithError(err).Warn("Reloaded system file is invalid")
			} else {
				logger.Info("Reloaded system file")
				if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
					_ = tel.Events.PublishSystemReloaded(path)
				}
			}
			fn(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Error("Watcher error")
		}
	}
}
