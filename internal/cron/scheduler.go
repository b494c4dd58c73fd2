package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/idrsched/internal/config"
	"github.com/flemzord/idrsched/internal/metrics"
)

// Parser accepts an optional leading seconds field, the five standard
// fields and the @every / @daily style descriptors.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Loader reads the current configuration from its backing store.
type Loader func() (*config.Config, error)

// Options configures a Manager. Firer and Resolver are required.
type Options struct {
	Loader   Loader
	Resolver StrategyResolver
	Firer    Firer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Location *time.Location
}

type trigger struct {
	entry cron.EntryID
	job   JobContext
	expr  string
	gen   uint64
}

// Manager owns the live trigger set. ScheduleAll, Refresh and Stop are
// mutually exclusive; firings never take mu.
//
// Each refresh bumps gen before removing entries, so a firing the engine
// already picked from the old set sees a stale generation and returns
// without dispatching.
type Manager struct {
	mu       sync.Mutex
	engine   *cron.Cron
	triggers map[string]*trigger
	order    []string
	started  bool
	stopped  bool

	// locks outlive refreshes so the same subscription never overlaps
	// itself across a reload.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	gen atomic.Uint64

	fireCtx    context.Context
	cancelFire context.CancelFunc

	loader   Loader
	resolver StrategyResolver
	firer    Firer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewManager creates a manager in the Empty state. The engine does not
// tick until Start is called.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/flemzord/idrsched/internal/cron")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		triggers:   make(map[string]*trigger),
		locks:      make(map[string]*sync.Mutex),
		fireCtx:    ctx,
		cancelFire: cancel,
		loader:     opts.Loader,
		resolver:   opts.Resolver,
		firer:      opts.Firer,
		logger:     logger,
		metrics:    opts.Metrics,
		tracer:     tracer,
	}
	m.engine = cron.New(
		cron.WithParser(Parser),
		cron.WithLocation(loc),
		cron.WithLogger(engineLogger{logger}),
		cron.WithChain(cron.Recover(engineLogger{logger})),
	)
	return m
}

// ScheduleAll replaces the live trigger set with one trigger per enabled
// subscription of cfg. Subscriptions whose strategy cannot be resolved or
// whose pattern does not parse are skipped and reported; the rest are
// still scheduled.
func (m *Manager) ScheduleAll(cfg *config.Config) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return Result{}, ErrStopped
	}
	m.clearLocked()
	return m.scheduleLocked(cfg), nil
}

// Refresh clears the live set, reloads the configuration and schedules it.
// If the reload fails the manager stays empty until the next successful
// refresh.
func (m *Manager) Refresh(ctx context.Context) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "cron.refresh")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return Result{}, ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cleared := m.clearLocked()
	m.logger.Info("cron: trigger set cleared for reload", "removed", cleared)

	if m.loader == nil {
		err := errors.New("cron: no configuration loader")
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	cfg, err := m.loader()
	if err != nil {
		m.metrics.ObserveReload(metrics.ReloadFailed)
		m.logger.Error("cron: configuration reload failed, scheduling paused",
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload failed")
		return Result{}, fmt.Errorf("cron: reloading configuration: %w", err)
	}

	res := m.scheduleLocked(cfg)
	m.metrics.ObserveReload(metrics.ReloadOK)
	span.SetAttributes(
		attribute.Int("idrsched.scheduled", len(res.Scheduled)),
		attribute.Int("idrsched.skipped", len(res.Skipped)),
	)
	return res, nil
}

// Start lets the engine tick. Calling it more than once is harmless.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return nil
	}
	m.engine.Start()
	m.started = true
	m.logger.Info("cron: scheduler started", "triggers", len(m.triggers))
	return nil
}

// Stop clears the trigger set and releases the engine. No new firing starts
// once Stop begins; in-flight firings are awaited until ctx is done, after
// which their context is cancelled. A second call returns nil.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	m.clearLocked()

	done := m.engine.Stop()
	select {
	case <-done.Done():
		m.cancelFire()
		m.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		m.cancelFire()
		m.logger.Warn("cron: scheduler stopped before in-flight firings finished",
			"error", ctx.Err(),
		)
		return fmt.Errorf("cron: waiting for in-flight firings: %w", ctx.Err())
	}
}

// Triggers returns a snapshot of the live set in configuration order. Next
// is zero until the engine has been started.
func (m *Manager) Triggers() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Trigger, 0, len(m.order))
	for _, id := range m.order {
		t := m.triggers[id]
		e := m.engine.Entry(t.entry)
		out = append(out, Trigger{
			ID:         id,
			Name:       t.job.Subscription,
			Schedule:   t.expr,
			StrategyID: t.job.StrategyID,
			Next:       e.Next,
			Prev:       e.Prev,
		})
	}
	return out
}

// Len returns the number of live triggers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}

// clearLocked removes every trigger. The generation is bumped first so that
// nothing from the old set dispatches once clearing has begun.
func (m *Manager) clearLocked() int {
	m.gen.Add(1)
	n := len(m.triggers)
	for _, t := range m.triggers {
		m.engine.Remove(t.entry)
	}
	clear(m.triggers)
	m.order = m.order[:0]
	m.metrics.SetTriggers(0)
	return n
}

func (m *Manager) scheduleLocked(cfg *config.Config) Result {
	var res Result
	gen := m.gen.Load()

	for _, sub := range config.Enabled(cfg) {
		if err := m.addLocked(cfg, sub, gen); err != nil {
			res.Skipped = append(res.Skipped, Skipped{ID: sub.ID, Err: err})
			m.metrics.ObserveSkipped(skipReason(err))
			m.logger.Error("cron: subscription skipped",
				"subscription", sub.ID,
				"strategy", sub.LoaderClass,
				"kind", skipReason(err),
				"error", err,
			)
			continue
		}
		res.Scheduled = append(res.Scheduled, sub.ID)
	}

	m.metrics.SetTriggers(len(m.triggers))
	m.logger.Info("cron: subscriptions scheduled",
		"scheduled", len(res.Scheduled),
		"skipped", len(res.Skipped),
	)
	return res
}

func (m *Manager) addLocked(cfg *config.Config, sub config.Subscription, gen uint64) error {
	if _, exists := m.triggers[sub.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSubscription, sub.ID)
	}
	if _, err := m.resolver.Lookup(sub.LoaderClass); err != nil {
		return fmt.Errorf("cron: resolving strategy for %q: %w", sub.ID, err)
	}
	sched, err := Parser.Parse(sub.CronPattern)
	if err != nil {
		return fmt.Errorf("%w %q for %q: %w", ErrInvalidSchedule, sub.CronPattern, sub.ID, err)
	}

	t := &trigger{
		job:  NewJobContext(cfg, sub),
		expr: sub.CronPattern,
		gen:  gen,
	}
	t.entry = m.engine.Schedule(sched, cron.FuncJob(func() { m.fire(t) }))
	m.triggers[sub.ID] = t
	m.order = append(m.order, sub.ID)
	return nil
}

func (m *Manager) fire(t *trigger) {
	if t.gen != m.gen.Load() {
		m.logger.Debug("cron: stale trigger ignored", "subscription", t.job.SubscriptionID)
		return
	}

	lock := m.lockFor(t.job.SubscriptionID)
	// TryLock is atomic: if the previous firing is still running, skip.
	if !lock.TryLock() {
		m.logger.Warn("cron: firing still running, skipping tick",
			"subscription", t.job.SubscriptionID,
		)
		return
	}
	defer lock.Unlock()

	if t.gen != m.gen.Load() {
		return
	}

	m.logger.Debug("cron: firing started", "job", t.job)
	if err := m.firer.Fire(m.fireCtx, t.job); err != nil {
		m.logger.Debug("cron: firing ended with error",
			"subscription", t.job.SubscriptionID,
			"error", err,
		)
		return
	}
	m.logger.Debug("cron: firing completed", "subscription", t.job.SubscriptionID)
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// IDs returns the subscription ids of the live set, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.triggers))
	for id := range m.triggers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSchedule):
		return "schedule"
	case errors.Is(err, ErrDuplicateSubscription):
		return "duplicate"
	default:
		return "strategy"
	}
}

// engineLogger routes robfig/cron's own logging to slog.
type engineLogger struct {
	l *slog.Logger
}

func (e engineLogger) Info(msg string, keysAndValues ...any) {
	e.l.Debug("cron: engine "+msg, keysAndValues...)
}

func (e engineLogger) Error(err error, msg string, keysAndValues ...any) {
	e.l.Error("cron: engine "+msg, append(keysAndValues, "error", err)...)
}
