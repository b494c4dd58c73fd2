package cron

import (
	"log/slog"

	"github.com/flemzord/idrsched/internal/config"
)

// JobContext is the snapshot a trigger carries. It is built once at
// schedule time and handed to every firing by value; nothing mutates it.
// Password is still sealed.
type JobContext struct {
	SubscriptionID string
	Subscription   string
	DataStore      string
	StrategyID     string
	Host           string
	Port           string
	User           string
	SealedPassword string
}

// NewJobContext captures the connection parameters of cfg and the routing
// fields of sub.
func NewJobContext(cfg *config.Config, sub config.Subscription) JobContext {
	return JobContext{
		SubscriptionID: sub.ID,
		Subscription:   sub.Name,
		DataStore:      sub.SourceDataStore,
		StrategyID:     sub.LoaderClass,
		Host:           cfg.AccessServer,
		Port:           cfg.Port,
		User:           cfg.UserID,
		SealedPassword: cfg.Password,
	}
}

// LogValue implements slog.LogValuer. The sealed password is left out.
func (j JobContext) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("subscription", j.SubscriptionID),
		slog.String("name", j.Subscription),
		slog.String("datastore", j.DataStore),
		slog.String("strategy", j.StrategyID),
		slog.String("host", j.Host),
	)
}
