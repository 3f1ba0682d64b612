package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchStation monitors the station file and calls onChange with the freshly
// parsed Station after every write. It runs until ctx is cancelled.
//
// A rewrite that fails to parse is logged and the previous settings stay
// active; onChange is not called.
func WatchStation(ctx context.Context, path string, logger *slog.Logger, onChange func(*Station)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger.Info("watching station file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save atomically via rename, which surfaces as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			st, err := LoadStation(path)
			if err != nil {
				logger.Error("station reload failed, keeping previous settings", "path", path, "error", err)
				continue
			}

			logger.Info("station file reloaded", "path", path,
				"safe_level", st.SafeLevel, "display_window", st.Window().String())
			onChange(st)

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("station watcher error", "error", err)
		}
	}
}
