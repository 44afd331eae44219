package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it changes and passes the new
// configuration to onReload. Bursts of events within debounce collapse into a
// single reload. A file that fails to load is logged and skipped; the previous
// configuration stays in effect. Watch returns once the watcher is running;
// it stops when ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, onReload func(*Config)) error {
	if path == "" {
		return fmt.Errorf("watching config: no file given")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	// Watch the directory: editors replace files by rename, which drops a file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	debounceTimer := time.NewTimer(debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					debounceTimer.Reset(debounce)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "error", err)

			case <-debounceTimer.C:
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("config reload failed, keeping previous config", "path", path, "error", err)
					continue
				}
				slog.Info("config reloaded", "path", path)
				onReload(cfg)

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
