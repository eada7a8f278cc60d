package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"vawter.tech/stopper"

	"github.com/tailored-agentic-units/supervisor/observability"
)

const watchGracePeriod = 100 * time.Millisecond

// Watch reloads the config file at path whenever it changes and applies
// the new desired states. Bursts of file events are collapsed into one
// reload. Watch blocks until ctx is done.
func (s *Supervisor) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	var (
		mu       sync.Mutex
		debounce clock.Timer
	)
	sctx.Defer(func() {
		mu.Lock()
		defer mu.Unlock()
		if debounce != nil {
			debounce.Stop()
		}
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				mu.Lock()
				if debounce != nil {
					debounce.Stop()
				}
				debounce = s.opts.clock.AfterFunc(s.opts.debounce, func() {
					if !sctx.IsStopping() {
						s.reload(path)
					}
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.logger.Warn("config watcher error", slog.String("error", err.Error()))
			}
		}
	})

	s.logger.Debug("watching config", slog.String("path", path))

	select {
	case <-ctx.Done():
	case <-sctx.Stopping():
	}
	sctx.Stop(watchGracePeriod)
	return sctx.Wait()
}

func (s *Supervisor) reload(path string) {
	cfg, err := LoadConfig(path)
	if err == nil {
		err = s.Apply(*cfg)
	}

	if err != nil {
		s.emit(EventReload, observability.LevelWarning, map[string]any{
			"path":                  path,
			observability.AttrError: err.Error(),
		})
		s.logger.Warn("config reload rejected", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	s.emit(EventReload, observability.LevelInfo, map[string]any{"path": path})
	s.logger.Info("config reloaded", slog.String("path", path))
}
