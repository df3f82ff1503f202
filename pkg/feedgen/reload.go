package feedgen

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
)

// reloadDebounce batches the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// LoadFunc reads the configuration file at path.
type LoadFunc func(path string) (*config.Config, error)

// WatchConfig reloads feed definitions whenever the file at path changes.
// It blocks until ctx is cancelled. Invalid files are logged and ignored.
func (s *Server) WatchConfig(ctx context.Context, path string, load LoadFunc) error {
	if load == nil {
		load = config.LoadConfig
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file by renaming.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	s.logger.Info("Watching config for feed changes", logging.F("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Config watcher error", logging.Err(err))

		case <-fire:
			fire = nil
			s.reloadFrom(abs, load)
		}
	}
}

func (s *Server) reloadFrom(path string, load LoadFunc) {
	cfg, err := load(path)
	if err != nil {
		s.metrics.RecordReload(err)
		s.logger.Warn("Ignoring invalid config", logging.F("path", path), logging.Err(err))
		return
	}
	if err := s.Reload(cfg.Feedgen); err != nil {
		s.logger.Warn("Ignoring invalid feed definitions", logging.F("path", path), logging.Err(err))
	}
}
