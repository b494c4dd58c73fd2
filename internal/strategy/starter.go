package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/idrsched/internal/controlplane"
)

// Built-in strategy identifiers.
const (
	SimpleStarterID = "SimpleSubscriptionStarter"
	StatusProbeID   = "StatusProbe"

	// LegacySimpleStarterID is the class name older configuration files
	// carry in loaderClass.
	LegacySimpleStarterID = "com.demo.management.idr.scheduler.SimpleSubscriptionStarter"
)

// Builtin returns a registry holding the built-in strategies.
func Builtin(dialer controlplane.Dialer, logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.MustRegister(SimpleStarterID, &SimpleStarter{Dialer: dialer, Logger: logger})
	r.MustRegister(StatusProbeID, &StatusProbe{Dialer: dialer, Logger: logger})
	if err := r.Alias(LegacySimpleStarterID, SimpleStarterID); err != nil {
		panic(err)
	}
	return r
}

// SimpleStarter starts a subscription whenever it is found not active.
type SimpleStarter struct {
	Dialer controlplane.Dialer
	Logger *slog.Logger
}

// Compile-time interface check.
var _ Strategy = (*SimpleStarter)(nil)

// Reconcile implements Strategy. An active subscription is left alone;
// any other status gets one start followed by one refresh.
func (s *SimpleStarter) Reconcile(ctx context.Context, t Target) (Outcome, error) {
	logger := loggerOrDefault(s.Logger)

	var outcome Outcome
	err := withSession(ctx, s.Dialer, logger, t, func(c controlplane.Client) error {
		st, err := c.Status(ctx, t.DataStore, t.Subscription)
		if errors.Is(err, controlplane.ErrSubscriptionNotFound) {
			logger.Warn("strategy: subscription does not exist in source data store",
				"subscription", t.SubscriptionID,
				"name", t.Subscription,
				"datastore", t.DataStore,
			)
			outcome = OutcomeMissing
			return nil
		}
		if err != nil {
			return err
		}

		logger.Info("strategy: subscription status",
			"subscription", t.SubscriptionID,
			"status", st.String(),
		)
		if st == controlplane.StatusActive {
			outcome = OutcomeNoop
			return nil
		}

		logger.Warn("strategy: subscription not running, starting",
			"subscription", t.SubscriptionID,
			"name", t.Subscription,
			"status", st.String(),
		)
		if err := c.Start(ctx, t.DataStore, t.Subscription); err != nil {
			return fmt.Errorf("starting %s: %w", t.Subscription, err)
		}
		if err := c.Refresh(ctx, t.DataStore, t.Subscription); err != nil {
			return fmt.Errorf("refreshing %s: %w", t.Subscription, err)
		}
		outcome = OutcomeStarted
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, nil
}

// StatusProbe reports the live status without acting on it.
type StatusProbe struct {
	Dialer controlplane.Dialer
	Logger *slog.Logger
}

// Compile-time interface check.
var _ Strategy = (*StatusProbe)(nil)

// Reconcile implements Strategy.
func (p *StatusProbe) Reconcile(ctx context.Context, t Target) (Outcome, error) {
	logger := loggerOrDefault(p.Logger)

	var outcome Outcome
	err := withSession(ctx, p.Dialer, logger, t, func(c controlplane.Client) error {
		st, err := c.Status(ctx, t.DataStore, t.Subscription)
		if errors.Is(err, controlplane.ErrSubscriptionNotFound) {
			outcome = OutcomeMissing
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("strategy: probed subscription status",
			"subscription", t.SubscriptionID,
			"status", st.String(),
		)
		outcome = OutcomeObserved
		return nil
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, nil
}

// withSession validates the target, dials one session and guarantees it is
// closed on every exit path, including a panic inside fn.
func withSession(
	ctx context.Context,
	dialer controlplane.Dialer,
	logger *slog.Logger,
	t Target,
	fn func(controlplane.Client) error,
) error {
	if t.DataStore == "" {
		return ErrNoDataStore
	}

	client, err := dialer.Dial(ctx, t.Conn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("strategy: closing control plane session failed",
				"subscription", t.SubscriptionID,
				"error", cerr,
			)
		}
	}()

	return fn(client)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
