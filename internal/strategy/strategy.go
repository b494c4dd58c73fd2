// Package strategy holds the pluggable reconciliation strategies a
// subscription names in its loaderClass, and the static registry that
// resolves them.
package strategy

import (
	"context"

	"github.com/flemzord/idrsched/internal/controlplane"
)

// Target is everything a strategy needs for one firing. The password in
// Conn is already unsealed.
type Target struct {
	SubscriptionID string
	Subscription   string
	DataStore      string
	Conn           controlplane.Params
}

// Outcome summarizes what a reconciliation did.
type Outcome string

const (
	// OutcomeNoop means the subscription was already in the desired state.
	OutcomeNoop Outcome = "noop"

	// OutcomeStarted means a start command was issued.
	OutcomeStarted Outcome = "started"

	// OutcomeMissing means the data store does not know the subscription.
	OutcomeMissing Outcome = "missing"

	// OutcomeObserved means the status was read without acting on it.
	OutcomeObserved Outcome = "observed"

	// OutcomeFailed means the firing aborted with an error.
	OutcomeFailed Outcome = "failed"
)

// Strategy converges one subscription towards its desired state.
type Strategy interface {
	Reconcile(ctx context.Context, t Target) (Outcome, error)
}

// Func adapts a plain function to Strategy.
type Func func(ctx context.Context, t Target) (Outcome, error)

// Reconcile implements Strategy.
func (f Func) Reconcile(ctx context.Context, t Target) (Outcome, error) {
	return f(ctx, t)
}
