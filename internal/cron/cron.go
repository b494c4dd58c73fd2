// Package cron owns the live trigger set: one cron trigger per enabled
// subscription, rebuilt from scratch on every reload.
package cron

import (
	"context"
	"time"

	"github.com/flemzord/idrsched/internal/strategy"
)

// Firer runs the body of one firing.
type Firer interface {
	Fire(ctx context.Context, job JobContext) error
}

// FirerFunc adapts a plain function to Firer.
type FirerFunc func(ctx context.Context, job JobContext) error

// Fire implements Firer.
func (f FirerFunc) Fire(ctx context.Context, job JobContext) error { return f(ctx, job) }

// StrategyResolver resolves a strategy identifier. *strategy.Registry
// satisfies it.
type StrategyResolver interface {
	Lookup(id string) (strategy.Strategy, error)
}

// Result reports what ScheduleAll did. Scheduled holds subscription ids in
// configuration order.
type Result struct {
	Scheduled []string
	Skipped   []Skipped
}

// Skipped is an enabled subscription that could not be scheduled.
type Skipped struct {
	ID  string
	Err error
}

// Trigger is a read-only view of one registered trigger.
type Trigger struct {
	ID         string    `json:"subscription_id"`
	Name       string    `json:"subscription_name"`
	Schedule   string    `json:"cron_pattern"`
	StrategyID string    `json:"strategy"`
	Next       time.Time `json:"next_fire,omitzero"`
	Prev       time.Time `json:"prev_fire,omitzero"`
}
