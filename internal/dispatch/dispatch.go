// Package dispatch runs the body of one trigger firing: unseal the
// credential, resolve the strategy and let it reconcile the subscription.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/idrsched/internal/controlplane"
	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/metrics"
	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/internal/security"
	"github.com/flemzord/idrsched/internal/strategy"
)

const tracerName = "github.com/flemzord/idrsched/internal/dispatch"

// Options configures a Dispatcher. Unsealer and Resolver are required.
type Options struct {
	Unsealer seal.Unsealer
	Resolver cron.StrategyResolver
	Redactor *security.Redactor
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// Dispatcher executes firings. It holds no per-firing state and is safe for
// concurrent use.
type Dispatcher struct {
	unsealer seal.Unsealer
	resolver cron.StrategyResolver
	redactor *security.Redactor
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Compile-time interface check.
var _ cron.Firer = (*Dispatcher)(nil)

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		unsealer: opts.Unsealer,
		resolver: opts.Resolver,
		redactor: opts.Redactor,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Fire implements cron.Firer. A failure aborts this firing only; nothing is
// retried before the subscription's next scheduled time.
func (d *Dispatcher) Fire(ctx context.Context, job cron.JobContext) error {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch.fire",
		trace.WithAttributes(
			attribute.String("idrsched.subscription.id", job.SubscriptionID),
			attribute.String("idrsched.subscription.name", job.Subscription),
			attribute.String("idrsched.datastore", job.DataStore),
			attribute.String("idrsched.strategy", job.StrategyID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	// The credential stays registered with the redactor until the outcome
	// has been logged, so errors echoing it are masked too.
	outcome, release, err := d.fire(ctx, job)
	defer release()
	elapsed := time.Since(start)

	d.metrics.ObserveFiring(job.SubscriptionID, string(outcome), elapsed)
	span.SetAttributes(attribute.String("idrsched.outcome", string(outcome)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("dispatch: firing failed",
			"subscription", job.SubscriptionID,
			"strategy", job.StrategyID,
			"datastore", job.DataStore,
			"kind", Kind(err),
			"error", err,
		)
		return err
	}

	span.SetStatus(codes.Ok, "")
	d.logger.Info("dispatch: firing completed",
		"subscription", job.SubscriptionID,
		"outcome", string(outcome),
		"duration", elapsed,
	)
	return nil
}

func (d *Dispatcher) fire(ctx context.Context, job cron.JobContext) (strategy.Outcome, func(), error) {
	release := func() {}

	password, err := d.unsealer.Unseal(job.SealedPassword)
	if err != nil {
		return strategy.OutcomeFailed, release, fmt.Errorf("dispatch: unsealing credential for %s: %w", job.SubscriptionID, err)
	}
	if d.redactor != nil {
		release = d.redactor.Track(password)
	}

	s, err := d.resolver.Lookup(job.StrategyID)
	if err != nil {
		return strategy.OutcomeFailed, release, fmt.Errorf("dispatch: %s: %w", job.SubscriptionID, err)
	}

	outcome, err := s.Reconcile(ctx, strategy.Target{
		SubscriptionID: job.SubscriptionID,
		Subscription:   job.Subscription,
		DataStore:      job.DataStore,
		Conn: controlplane.Params{
			Host:     job.Host,
			Port:     job.Port,
			User:     job.User,
			Password: password,
		},
	})
	if err != nil {
		return strategy.OutcomeFailed, release, fmt.Errorf("dispatch: reconciling %s: %w", job.SubscriptionID, err)
	}
	return outcome, release, nil
}
