package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// reloadDelay debounces bursts of filesystem events from editors that
// write files in several steps.
const reloadDelay = 500 * time.Millisecond

// Watch re-reads the config file on change and invokes onReload with the
// freshly parsed configuration. Parse or validation failures keep the
// previous configuration in effect. The watcher stops when ctx is done.
func Watch(ctx context.Context, path string, logger *telemetry.Logger, onReload func(*Config)) error {
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	go func() {
		defer watcher.Close()
		var reloadTimer *time.Timer

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, func() {
					cfg, err := Load(path)
					if err != nil {
						logger.WithError(err).Warn("config reload failed, keeping previous configuration")
						return
					}
					logger.WithField("level", cfg.Logging.Level).Info("configuration reloaded")
					onReload(cfg)
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Error("config watcher error")
			}
		}
	}()

	return nil
}
