package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DebounceDelay collapses bursts of writes into one reload.
var DebounceDelay = 200 * time.Millisecond

// Watch calls onChange with the freshly loaded manifest whenever the file
// at path is written or re-created. Invalid manifests are logged and
// skipped. It blocks until ctx is done.
//
// The parent directory is watched, so editors that replace the file by
// renaming keep working.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Manifest)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manifest: creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("manifest: watching %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching manifest", zap.String("path", abs))

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("manifest watcher stopped", zap.String("path", abs))
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("manifest changed",
				zap.String("path", abs),
				zap.String("op", event.Op.String()),
			)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(DebounceDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			m, err := LoadFile(abs)
			if err != nil {
				logger.Error("manifest reload failed", zap.String("path", abs), zap.Error(err))
				continue
			}
			logger.Info("manifest reloaded",
				zap.String("path", abs),
				zap.Int("services", len(m.Services)),
			)
			onChange(m)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("manifest watcher error", zap.Error(err))
		}
	}
}
