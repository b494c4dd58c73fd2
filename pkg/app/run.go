// Package app assembles the scheduler service from its parts and runs it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/idrsched/internal/accessserver"
	"github.com/flemzord/idrsched/internal/config"
	"github.com/flemzord/idrsched/internal/controlplane"
	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/dispatch"
	"github.com/flemzord/idrsched/internal/gateway"
	"github.com/flemzord/idrsched/internal/metrics"
	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/internal/security"
	"github.com/flemzord/idrsched/internal/strategy"
	"github.com/flemzord/idrsched/internal/supervisor"
	"github.com/flemzord/idrsched/internal/telemetry"
)

// KeyFileEnv names the environment variable holding the key file path.
const KeyFileEnv = "IDRSCHED_KEY_FILE"

// RunParams configures the service.
type RunParams struct {
	// ConfigPath is the schedule document. Required.
	ConfigPath string

	// KeyFile holds the hex AES key. See ResolveKeyFile for the default.
	KeyFile string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// AdminAddr enables the admin HTTP server when non-empty.
	AdminAddr string

	// AdminToken, if set, is required as a Bearer token on POST /reload.
	AdminToken string

	// WaitInterval overrides the supervisor's stop-flag poll interval.
	WaitInterval time.Duration

	// AccessURL is the access server base URL template.
	AccessURL string

	// Version is injected at build time via ldflags.
	Version string

	// Dialer replaces the access server client. Used by tests.
	Dialer controlplane.Dialer
}

// Runtime is a fully wired but not yet running service.
type Runtime struct {
	Logger     *slog.Logger
	Redactor   *security.Redactor
	Registry   *prometheus.Registry
	Strategies *strategy.Registry
	Manager    *cron.Manager
	Supervisor *supervisor.Supervisor
	Gateway    *gateway.Gateway

	shutdownTelemetry func(context.Context) error
}

// NewLogger builds the root logger: a text handler on stderr wrapped so
// that registered secrets never reach the output.
func NewLogger(level slog.Level, redactor *security.Redactor) *slog.Logger {
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// Build wires every component for params.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	if params.ConfigPath == "" {
		return nil, supervisor.ErrNoConfigPath
	}

	// Credentials cannot be unsealed without the key, so it must be usable
	// at startup. Firings still re-read it through seal.KeyFile.
	keyFile := ResolveKeyFile(params.KeyFile, params.ConfigPath)
	if _, err := seal.LoadKeyFile(keyFile); err != nil {
		return nil, fmt.Errorf("app: key file %s: %w", keyFile, err)
	}

	redactor := security.NewRedactor()
	logger := NewLogger(params.LogLevel, redactor)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv("idrsched", params.Version))
	if err != nil {
		logger.Warn("app: tracing disabled", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	dialer := params.Dialer
	if dialer == nil {
		dialer = accessserver.NewDialer(accessserver.Config{URLTemplate: params.AccessURL})
	}
	strategies := strategy.Builtin(dialer, logger)

	d := dispatch.New(dispatch.Options{
		Unsealer: seal.KeyFile{Path: keyFile},
		Resolver: strategies,
		Redactor: redactor,
		Metrics:  m,
		Logger:   logger,
	})

	cfgPath := params.ConfigPath
	mgr := cron.NewManager(cron.Options{
		Loader:   func() (*config.Config, error) { return config.Load(cfgPath) },
		Resolver: strategies,
		Firer:    d,
		Logger:   logger,
		Metrics:  m,
	})

	sup := supervisor.New(supervisor.Options{
		ConfigPath:   cfgPath,
		Scheduler:    mgr,
		Logger:       logger,
		WaitInterval: params.WaitInterval,
	})

	rt := &Runtime{
		Logger:            logger,
		Redactor:          redactor,
		Registry:          reg,
		Strategies:        strategies,
		Manager:           mgr,
		Supervisor:        sup,
		shutdownTelemetry: shutdownTelemetry,
	}

	if params.AdminAddr != "" {
		rt.Gateway = gateway.New(gateway.Config{
			Bind: params.AdminAddr,
			Auth: gateway.AuthConfig{BearerToken: params.AdminToken},
		}, gateway.Deps{
			State:    func() string { return sup.State().String() },
			Triggers: mgr,
			Reloader: sup.Reloads(),
			Gatherer: reg,
		}, logger)
		sup.AddService(rt.Gateway)
	}

	return rt, nil
}

// Close flushes telemetry.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.shutdownTelemetry == nil {
		return
	}
	if err := rt.shutdownTelemetry(ctx); err != nil {
		rt.Logger.Warn("app: flushing traces", "error", err)
	}
}

// Run builds the service and blocks until SIGINT or SIGTERM. SIGHUP
// triggers a configuration reload.
func Run(params RunParams) error {
	ctx := context.Background()
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- rt.Supervisor.Run(ctx) }()

	for {
		select {
		case err := <-done:
			return err
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				rt.Logger.Info("app: SIGHUP received, reloading configuration")
				rt.Supervisor.Reloads().Request()
				continue
			}
			rt.Logger.Info("app: shutdown signal received", "signal", sig.String())
			rt.Supervisor.Stop()
		}
	}
}

// ResolveKeyFile picks the key file: the explicit path, then $IDRSCHED_KEY_FILE,
// then key.dat next to the configuration file.
func ResolveKeyFile(explicit, configPath string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(KeyFileEnv); env != "" {
		return env
	}
	return filepath.Join(filepath.Dir(configPath), "key.dat")
}

// DefaultConfigPath returns where interactive commands write a new document.
// Uses $XDG_CONFIG_HOME/idrsched/schedule.yaml when set.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "idrsched", "schedule.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "idrsched", "schedule.yaml")
	}
	return "schedule.yaml"
}

// Check loads path and schedules it on an engine that is never started,
// reporting what the service would schedule and skip.
func Check(path string, strategies *strategy.Registry) (*config.Config, cron.Result, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cron.Result{}, err
	}

	mgr := cron.NewManager(cron.Options{
		Resolver: strategies,
		Firer:    cron.FirerFunc(func(context.Context, cron.JobContext) error { return nil }),
		Logger:   slog.New(slog.DiscardHandler),
	})
	defer func() { _ = mgr.Stop(context.Background()) }()

	res, err := mgr.ScheduleAll(cfg)
	return cfg, res, err
}
