// Package gateway serves the admin HTTP endpoints: health, status,
// Prometheus metrics and manual reload.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/reload"
)

// TriggerSource lists the live triggers. *cron.Manager satisfies it.
type TriggerSource interface {
	Triggers() []cron.Trigger
}

// Reloader accepts reload requests and reports the last outcome.
// *reload.Handler satisfies it.
type Reloader interface {
	Request()
	Last() *reload.Outcome
}

// Deps are the components the endpoints read from. Any may be nil.
type Deps struct {
	State    func() string
	Triggers TriggerSource
	Reloader Reloader
	Gatherer prometheus.Gatherer
}

// Gateway is the admin HTTP server.
type Gateway struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a gateway. Nothing listens until Start.
func New(cfg Config, deps Deps, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{config: cfg, deps: deps, logger: logger, startedAt: time.Now()}
}

// Handler returns the router without starting a listener.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}
