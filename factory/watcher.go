package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/warp/incentive-engine/incentive"
)

// Watcher reloads a schemes file into a Registry whenever it changes.
//
// The parent directory is watched rather than the file, since editors
// usually replace a file by rename. Bursts of events are collapsed into
// one reload. A file that fails to parse leaves the current snapshot in
// place.
type Watcher struct {
	path     string
	factory  *SchemeFactory
	registry *incentive.Registry
	debounce time.Duration
	logger   log.FieldLogger

	// OnReload is called after every reload attempt (tests, metrics).
	OnReload func(set *incentive.SchemeSet, err error)
}

// NewWatcher creates a watcher for path. It does not load anything until
// Run or Load is called.
func NewWatcher(path string, f *SchemeFactory, reg *incentive.Registry, logger log.FieldLogger) *Watcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Watcher{
		path:     path,
		factory:  f,
		registry: reg,
		debounce: 200 * time.Millisecond,
		logger:   logger.WithField("component", "scheme_watcher"),
	}
}

// SetDebounce changes the quiet period before a reload.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// LoadSchemes implements incentive.SchemeSource.
func (w *Watcher) LoadSchemes(ctx context.Context) ([]incentive.SchemeDefinition, error) {
	return w.factory.LoadFile(w.path)
}

// Load reads the file once and publishes it.
func (w *Watcher) Load(ctx context.Context) (*incentive.SchemeSet, error) {
	set, err := w.registry.Reload(ctx, w)
	if err != nil {
		w.logger.WithError(err).WithField("path", w.path).Error("scheme reload failed, keeping previous snapshot")
	} else {
		w.logger.WithFields(log.Fields{
			"path":    w.path,
			"version": set.Version(),
			"schemes": set.Len(),
		}).Info("schemes loaded")
	}
	if w.OnReload != nil {
		w.OnReload(set, err)
	}
	return set, err
}

// Run loads the file, then watches it until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Initial load errors are logged; the watcher keeps running so a fixed
	// file is picked up.
	_, _ = w.Load(ctx)

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_, _ = w.Load(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("file watcher error")
		}
	}
}
