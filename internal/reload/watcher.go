// Package reload turns changes to the configuration file, and explicit
// reload requests, into schedule refreshes.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the configuration file. Its containing directory is
	// watched so that editors that replace the file are still seen.
	ConfigPath string
}

// EventType describes what caused a reload.
type EventType string

const (
	// EventModified indicates the config file was written, created,
	// renamed or removed.
	EventModified EventType = "modified"

	// EventRequested indicates an explicit reload request (signal or admin API).
	EventRequested EventType = "requested"
)

// Event is one reload notification.
type Event struct {
	Type       EventType
	ConfigPath string
	Op         string
}

// WatchSetupError means the directory watch could not be established.
// Hot reload is disabled but the running schedule is unaffected.
type WatchSetupError struct {
	Dir string
	Err error
}

func (e *WatchSetupError) Error() string {
	return fmt.Sprintf("reload: watching %s: %v", e.Dir, e.Err)
}

func (e *WatchSetupError) Unwrap() error { return e.Err }

// Watcher observes the configuration file's directory with fsnotify.
type Watcher struct {
	cfg     WatcherConfig
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	events  chan Event
	errors  chan error
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. Nothing is watched until Start.
func NewWatcher(cfg WatcherConfig, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, 1),
		errors:  make(chan error, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start registers the directory watch and starts the event goroutine.
// A *WatchSetupError is returned if the watch cannot be set up; in that
// case no goroutine runs. Only the first call has any effect.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.startOnce.Do(func() {
		dir := filepath.Dir(w.cfg.ConfigPath)

		fsw, nerr := fsnotify.NewWatcher()
		if nerr != nil {
			err = &WatchSetupError{Dir: dir, Err: nerr}
			return
		}
		if aerr := fsw.Add(dir); aerr != nil {
			_ = fsw.Close()
			err = &WatchSetupError{Dir: dir, Err: aerr}
			return
		}

		w.fsw = fsw
		w.started.Store(true)
		go w.run(ctx)
		w.logger.Info("reload: watching configuration directory", "dir", dir)
	})
	return err
}

// Events returns the channel of change events. Sends block until the
// consumer is ready, so no change is dropped.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns runtime watch errors. Errors are dropped when nobody reads.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watch handle and waits for the goroutine to exit.
// Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("reload: closing watch handle", "error", err)
		}
	}()

	base := filepath.Base(w.cfg.ConfigPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base || !relevant(ev.Op) {
				continue
			}
			w.logger.Debug("reload: configuration changed", "op", ev.Op.String())
			select {
			case w.events <- Event{Type: EventModified, ConfigPath: w.cfg.ConfigPath, Op: ev.Op.String()}:
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("reload: watch error", "error", err)
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) ||
		op.Has(fsnotify.Rename) || op.Has(fsnotify.Remove)
}
