package reload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/idrsched/internal/cron"
)

// Refresher rebuilds the schedule from the configuration store.
// *cron.Manager satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (cron.Result, error)
}

// Outcome describes the most recent reload.
type Outcome struct {
	At        time.Time `json:"at"`
	Cause     EventType `json:"cause"`
	Scheduled []string  `json:"scheduled"`
	Skipped   []string  `json:"skipped,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Handler consumes reload events and refreshes the schedule, one at a time.
type Handler struct {
	refresher Refresher
	logger    *slog.Logger
	requests  chan Event

	mu   sync.Mutex
	last *Outcome
}

// NewHandler creates a reload handler.
func NewHandler(r Refresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		refresher: r,
		logger:    logger,
		requests:  make(chan Event, 1),
	}
}

// Request asks for a reload outside of file events. Requests made while
// one is already pending are folded into it.
func (h *Handler) Request() {
	select {
	case h.requests <- Event{Type: EventRequested}:
	default:
	}
}

// Run refreshes the schedule for every event until ctx is done. A nil
// events channel is allowed; only explicit requests are served then.
func (h *Handler) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := h.HandleEvent(ctx, ev); errors.Is(err, cron.ErrStopped) {
				return nil
			}
		case ev := <-h.requests:
			if err := h.HandleEvent(ctx, ev); errors.Is(err, cron.ErrStopped) {
				return nil
			}
		}
	}
}

// HandleEvent performs one synchronous refresh and records its outcome.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) error {
	h.logger.Info("reload: refreshing schedule", "cause", ev.Type, "op", ev.Op)

	res, err := h.refresher.Refresh(ctx)
	out := &Outcome{
		At:        time.Now(),
		Cause:     ev.Type,
		Scheduled: res.Scheduled,
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, s.ID)
	}
	if err != nil {
		out.Error = err.Error()
		h.logger.Error("reload: refresh failed", "cause", ev.Type, "error", err)
	} else {
		h.logger.Info("reload: schedule refreshed",
			"scheduled", len(res.Scheduled),
			"skipped", len(res.Skipped),
		)
	}

	h.mu.Lock()
	h.last = out
	h.mu.Unlock()
	return err
}

// Last returns the outcome of the most recent reload, or nil.
func (h *Handler) Last() *Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	cp := *h.last
	return &cp
}
