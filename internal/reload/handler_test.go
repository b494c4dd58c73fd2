package reload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/idrsched/internal/config"
	"github.com/flemzord/idrsched/internal/cron"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	res   cron.Result
	err   error
	done  chan struct{}
}

func (f *fakeRefresher) Refresh(context.Context) (cron.Result, error) {
	f.mu.Lock()
	f.calls++
	res, err := f.res, f.err
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return res, err
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestHandler_HandleEvent_RecordsOutcome(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{res: cron.Result{
		Scheduled: []string{"S1"},
		Skipped:   []cron.Skipped{{ID: "S2", Err: errors.New("bad")}},
	}}
	h := NewHandler(r, testLogger())

	if h.Last() != nil {
		t.Fatal("Last before any reload should be nil")
	}
	if err := h.HandleEvent(context.Background(), Event{Type: EventModified}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	last := h.Last()
	if last == nil || last.Cause != EventModified {
		t.Fatalf("last = %+v", last)
	}
	if len(last.Scheduled) != 1 || len(last.Skipped) != 1 || last.Skipped[0] != "S2" {
		t.Errorf("last = %+v", last)
	}
}

func TestHandler_HandleEvent_Failure(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{err: config.ErrMalformed}
	h := NewHandler(r, testLogger())

	err := h.HandleEvent(context.Background(), Event{Type: EventModified})
	if !errors.Is(err, config.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if last := h.Last(); last == nil || last.Error == "" {
		t.Errorf("failed reload not recorded: %+v", last)
	}
}

func TestHandler_Run_EveryEventRefreshes(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{done: make(chan struct{}, 8)}
	h := NewHandler(r, testLogger())
	events := make(chan Event)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- h.Run(ctx, events) }()

	for range 3 {
		events <- Event{Type: EventModified}
	}
	for range 3 {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatal("refresh not performed")
		}
	}
	if r.Calls() != 3 {
		t.Errorf("refresh calls = %d, want 3", r.Calls())
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestHandler_Run_ServesRequests(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{done: make(chan struct{}, 1)}
	h := NewHandler(r, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx, nil) }()

	h.Request()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("requested reload not performed")
	}
	if last := h.Last(); last == nil || last.Cause != EventRequested {
		// Last is written after Refresh returns; allow it to land.
		time.Sleep(50 * time.Millisecond)
		if last = h.Last(); last == nil || last.Cause != EventRequested {
			t.Errorf("last = %+v", last)
		}
	}
}

func TestHandler_Run_ExitsWhenManagerStopped(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{err: cron.ErrStopped}
	h := NewHandler(r, testLogger())
	events := make(chan Event, 1)
	events <- Event{Type: EventModified}

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background(), events) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after manager stop")
	}
}
