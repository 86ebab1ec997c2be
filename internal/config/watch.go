package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ayusman/signn/internal/log"
)

// settleDelay lets editors finish writing before the file is re-read.
const settleDelay = 50 * time.Millisecond

// Watch reloads the config file at path whenever it is written or replaced and
// passes each successfully validated result to onChange. Invalid edits are
// logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-over saves are seen.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

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

			time.Sleep(settleDelay)

			cfg, err := Load(abs)
			if err != nil {
				log.Warn(log.Fields{"path": abs, "error": err.Error()}, "config reload rejected")
				continue
			}
			log.Info(log.Fields{"path": abs}, "config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn(log.Fields{"error": err.Error()}, "config watcher error")
		}
	}
}

// LiveChanges reports which live-applicable settings differ between old and next,
// and whether any setting that needs a restart changed.
func LiveChanges(old, next *Config) (cooldown, level, restart bool) {
	cooldown = old.Console.Cooldown != next.Console.Cooldown
	level = old.Log.Level != next.Log.Level

	restart = old.Camera != next.Camera ||
		old.Pipeline != next.Pipeline ||
		old.Recognizer != next.Recognizer ||
		old.Server != next.Server ||
		old.Store != next.Store ||
		old.Log.File != next.Log.File ||
		old.Tray != next.Tray
	return cooldown, level, restart
}
