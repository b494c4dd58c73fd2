// Package supervisor drives the service lifecycle: load the configuration,
// schedule it, watch it, block until told to stop, then tear down.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/idrsched/internal/config"
	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/reload"
)

const (
	defaultWaitInterval    = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Scheduler is the part of *cron.Manager the supervisor drives.
type Scheduler interface {
	ScheduleAll(cfg *config.Config) (cron.Result, error)
	Refresh(ctx context.Context) (cron.Result, error)
	Start() error
	Stop(ctx context.Context) error
}

// Service is an auxiliary component started after scheduling and stopped
// during teardown, such as the admin gateway.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures a Supervisor.
type Options struct {
	ConfigPath string
	Scheduler  Scheduler
	Logger     *slog.Logger

	// WaitInterval bounds how long the wait loop blocks before re-checking
	// the stop flag. Defaults to 60s.
	WaitInterval time.Duration

	// ShutdownTimeout bounds the teardown. Defaults to 30s.
	ShutdownTimeout time.Duration
}

// Supervisor runs once: Idle, Loading, Running, Stopping, Stopped.
type Supervisor struct {
	opts     Options
	logger   *slog.Logger
	reloads  *reload.Handler
	services []Service

	state    atomic.Int32
	stopFlag atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a supervisor in the Idle state.
func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = defaultWaitInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Supervisor{
		opts:    opts,
		logger:  opts.Logger,
		reloads: reload.NewHandler(opts.Scheduler, opts.Logger),
		stopCh:  make(chan struct{}),
	}
}

// AddService registers an auxiliary service. Must be called before Run.
func (s *Supervisor) AddService(svc Service) {
	s.services = append(s.services, svc)
}

// Reloads returns the handler serving reload events and requests.
func (s *Supervisor) Reloads() *reload.Handler {
	return s.reloads
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Stop asks a running supervisor to stop. Safe to call at any time and
// more than once; a stop requested before Run makes Run tear down at once.
func (s *Supervisor) Stop() {
	s.stopFlag.Store(true)
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run blocks until Stop is called or ctx is done. A missing config path is
// the only error; an unusable configuration logs and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateLoading)) {
		return ErrAlreadyRun
	}

	if s.opts.ConfigPath == "" {
		s.setState(StateStopped)
		return ErrNoConfigPath
	}

	cfg, err := config.Load(s.opts.ConfigPath)
	if err != nil {
		s.logger.Error("supervisor: no usable configuration, exiting",
			"path", s.opts.ConfigPath,
			"error", err,
		)
		s.setState(StateStopped)
		return nil
	}

	res, err := s.opts.Scheduler.ScheduleAll(cfg)
	if err != nil {
		s.setState(StateStopped)
		return err
	}
	if err := s.opts.Scheduler.Start(); err != nil {
		s.setState(StateStopped)
		return err
	}
	s.logger.Info("supervisor: running",
		"config", s.opts.ConfigPath,
		"scheduled", len(res.Scheduled),
		"skipped", len(res.Skipped),
	)
	s.setState(StateRunning)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: s.opts.ConfigPath}, s.logger)
	if err := watcher.Start(gctx); err != nil {
		s.logger.Warn("supervisor: hot reload disabled", "error", err)
	}
	g.Go(func() error {
		return s.reloads.Run(gctx, watcher.Events())
	})

	var started []Service
	for _, svc := range s.services {
		if err := svc.Start(gctx); err != nil {
			s.logger.Error("supervisor: auxiliary service failed to start", "error", err)
			continue
		}
		started = append(started, svc)
	}

	s.wait(ctx)

	s.setState(StateStopping)
	s.logger.Info("supervisor: stopping")
	cancel()
	s.teardown(watcher, started)
	if err := g.Wait(); err != nil {
		s.logger.Error("supervisor: background task failed", "error", err)
	}

	s.setState(StateStopped)
	s.logger.Info("supervisor: stopped")
	return nil
}

// wait blocks until stop is requested or ctx is done. The ticker re-checks
// the stop flag in case the channel close is never observed.
func (s *Supervisor) wait(ctx context.Context) {
	ticker := time.NewTicker(s.opts.WaitInterval)
	defer ticker.Stop()

	for {
		if s.stopFlag.Load() {
			return
		}
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor: interrupted", "error", ctx.Err())
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.logger.Debug("supervisor: waiting for stop signal")
		}
	}
}

// teardown stops the scheduler and the watcher. Both are always attempted;
// failures are logged and never returned.
func (s *Supervisor) teardown(watcher *reload.Watcher, services []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.opts.Scheduler.Stop(ctx); err != nil {
		s.logger.Error("supervisor: stopping scheduler", "error", err)
	}

	watcher.Stop()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("supervisor: stopping auxiliary service", "error", err)
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}
