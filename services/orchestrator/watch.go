// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce collapses the burst of events one editor save
// produces into a single reload.
const DefaultReloadDebounce = 250 * time.Millisecond

// WatchConfig reloads the config file at path whenever it changes and
// passes the result to onChange.
//
// # Description
//
// The parent directory is watched rather than the file, so saves that
// replace the file (rename over it) are seen too. Events are debounced. A
// file that fails to load is logged and onChange is not called, so the
// previous configuration stays in effect.
//
// Only settings that are safe to change at runtime should be applied by
// onChange; the server itself is not rebuilt.
//
// # Inputs
//
//   - ctx: Watching stops when ctx is cancelled.
//   - path: Config file, as given to LoadConfig.
//   - debounce: Quiet period before reloading. Zero uses DefaultReloadDebounce.
//   - onChange: Receives each successfully reloaded Config.
//
// # Outputs
//
//   - error: Non-nil if the watcher cannot be created. Blocks until ctx is
//     done otherwise and returns nil.
func WatchConfig(ctx context.Context, path string, debounce time.Duration, onChange func(Config), logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)

		case <-timer.C:
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Warn("Config reload failed, keeping previous settings", "path", abs, "error", err)
				continue
			}
			logger.Info("Config reloaded", "path", abs)
			onChange(cfg)
		}
	}
}
