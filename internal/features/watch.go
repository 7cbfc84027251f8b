package features

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the flags file must stay quiet before it is re-read.
// Editors often write a file in several steps.
const DefaultSettleDelay = 150 * time.Millisecond

// Watch re-reads the flags file whenever it changes until ctx is canceled.
// The parent directory is watched so atomic renames and re-creation are seen.
// Watch returns immediately when no flags file is configured.
func (s *Source) Watch(ctx context.Context, settle time.Duration) error {
	if s.path == "" {
		return nil
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create flags watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	s.logger.Info("watching feature flags file", "path", target)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(settle)

		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.logger.Warn("feature flags reload failed, keeping previous flags", "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("feature flags watcher error", "error", err)
		}
	}
}
