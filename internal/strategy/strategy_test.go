package strategy

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/flemzord/idrsched/internal/controlplane"
	"github.com/flemzord/idrsched/internal/controlplane/controlplanetest"
)

func testTarget() Target {
	return Target{
		SubscriptionID: "S1",
		Subscription:   "ORDERS",
		DataStore:      "DS1",
		Conn:           controlplane.Params{Host: "h", Port: "10101", User: "u", Password: "plain"},
	}
}

func TestSimpleStarter_ActiveIsNoop(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusActive)
	s := &SimpleStarter{Dialer: dialer, Logger: slog.Default()}

	outcome, err := s.Reconcile(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNoop {
		t.Errorf("outcome = %q, want noop", outcome)
	}
	if n := dialer.Client.Count("start"); n != 0 {
		t.Errorf("start calls = %d, want 0", n)
	}
	if got := dialer.Client.Ops(); !slices.Equal(got, []string{"status", "close"}) {
		t.Errorf("ops = %v", got)
	}
}

func TestSimpleStarter_IdleStartsThenRefreshes(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusIdle)
	s := &SimpleStarter{Dialer: dialer, Logger: slog.Default()}

	outcome, err := s.Reconcile(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeStarted {
		t.Errorf("outcome = %q, want started", outcome)
	}
	want := []string{"status", "start", "refresh", "close"}
	if got := dialer.Client.Ops(); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	for _, call := range dialer.Client.Calls()[:3] {
		if call.DataStore != "DS1" || call.Subscription != "ORDERS" {
			t.Errorf("call routed to %s/%s", call.DataStore, call.Subscription)
		}
	}
	if p := dialer.LastParams(); p.Password != "plain" || p.Host != "h" {
		t.Errorf("dial params = %+v", p)
	}
}

func TestSimpleStarter_EveryNonActiveStatusStarts(t *testing.T) {
	t.Parallel()

	for _, st := range []controlplane.Status{
		controlplane.StatusBlocked, controlplane.StatusRecovery, controlplane.StatusStarting,
		controlplane.StatusWaiting, controlplane.StatusEnding, controlplane.StatusUnknown,
	} {
		dialer := controlplanetest.NewMockDialer(st)
		s := &SimpleStarter{Dialer: dialer}
		if _, err := s.Reconcile(context.Background(), testTarget()); err != nil {
			t.Fatalf("%v: unexpected error: %v", st, err)
		}
		if n := dialer.Client.Count("start"); n != 1 {
			t.Errorf("%v: start calls = %d, want 1", st, n)
		}
	}
}

func TestSimpleStarter_EmptyDataStore(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusIdle)
	s := &SimpleStarter{Dialer: dialer}

	target := testTarget()
	target.DataStore = ""
	outcome, err := s.Reconcile(context.Background(), target)
	if !errors.Is(err, ErrNoDataStore) {
		t.Fatalf("err = %v, want ErrNoDataStore", err)
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %q, want failed", outcome)
	}
	if dialer.DialCount() != 0 {
		t.Error("no connection must be attempted without a data store")
	}
}

func TestSimpleStarter_ConnectFailure(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusIdle)
	dialer.DialErr = controlplane.ErrConnect
	s := &SimpleStarter{Dialer: dialer}

	_, err := s.Reconcile(context.Background(), testTarget())
	if !errors.Is(err, controlplane.ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
	if dialer.DialCount() != 1 {
		t.Errorf("dials = %d, want exactly 1 (no retry)", dialer.DialCount())
	}
}

func TestSimpleStarter_ReleasesSessionOnError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(c *controlplanetest.MockClient)
		want  []string
	}{
		{
			name:  "status fails",
			setup: func(c *controlplanetest.MockClient) { c.StatusErr = controlplane.ErrOperation },
			want:  []string{"status", "close"},
		},
		{
			name:  "start fails",
			setup: func(c *controlplanetest.MockClient) { c.StartErr = controlplane.ErrOperation },
			want:  []string{"status", "start", "close"},
		},
		{
			name:  "refresh fails",
			setup: func(c *controlplanetest.MockClient) { c.RefreshErr = controlplane.ErrOperation },
			want:  []string{"status", "start", "refresh", "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dialer := controlplanetest.NewMockDialer(controlplane.StatusIdle)
			tt.setup(dialer.Client)
			s := &SimpleStarter{Dialer: dialer}

			outcome, err := s.Reconcile(context.Background(), testTarget())
			if !errors.Is(err, controlplane.ErrOperation) {
				t.Fatalf("err = %v, want ErrOperation", err)
			}
			if outcome != OutcomeFailed {
				t.Errorf("outcome = %q, want failed", outcome)
			}
			if got := dialer.Client.Ops(); !slices.Equal(got, tt.want) {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimpleStarter_CloseErrorDoesNotFailFiring(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusActive)
	dialer.Client.CloseErr = errors.New("close boom")
	s := &SimpleStarter{Dialer: dialer}

	if _, err := s.Reconcile(context.Background(), testTarget()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimpleStarter_MissingSubscription(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusUnknown)
	dialer.Client.StatusErr = controlplane.ErrSubscriptionNotFound
	s := &SimpleStarter{Dialer: dialer}

	outcome, err := s.Reconcile(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeMissing {
		t.Errorf("outcome = %q, want missing", outcome)
	}
	if dialer.Client.Count("start") != 0 {
		t.Error("a missing subscription must not be started")
	}
}

func TestStatusProbe_NeverStarts(t *testing.T) {
	t.Parallel()

	dialer := controlplanetest.NewMockDialer(controlplane.StatusIdle)
	p := &StatusProbe{Dialer: dialer}

	outcome, err := p.Reconcile(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeObserved {
		t.Errorf("outcome = %q, want observed", outcome)
	}
	if got := dialer.Client.Ops(); !slices.Equal(got, []string{"status", "close"}) {
		t.Errorf("ops = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := Func(func(context.Context, Target) (Outcome, error) { return OutcomeNoop, nil })

	if err := r.Register("a", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("a", noop); !errors.Is(err, ErrDuplicateStrategy) {
		t.Errorf("duplicate err = %v, want ErrDuplicateStrategy", err)
	}
	if _, err := r.Lookup("a"); err != nil {
		t.Errorf("lookup: %v", err)
	}
	if _, err := r.Lookup("com.example.Missing"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("lookup err = %v, want ErrUnknownStrategy", err)
	}
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	r := Builtin(controlplanetest.NewMockDialer(controlplane.StatusActive), nil)
	want := []string{SimpleStarterID, StatusProbeID}
	if got := r.IDs(); !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestBuiltin_LegacyClassName(t *testing.T) {
	t.Parallel()

	r := Builtin(controlplanetest.NewMockDialer(controlplane.StatusActive), nil)
	legacy, err := r.Lookup(LegacySimpleStarterID)
	if err != nil {
		t.Fatalf("lookup legacy name: %v", err)
	}
	current, err := r.Lookup(SimpleStarterID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if legacy != current {
		t.Error("legacy name resolves to a different strategy")
	}
}

func TestRegistry_Alias(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	noop := Func(func(context.Context, Target) (Outcome, error) { return OutcomeNoop, nil })
	r.MustRegister("a", noop)

	if err := r.Alias("b", "missing"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("alias to unknown err = %v, want ErrUnknownStrategy", err)
	}
	if err := r.Alias("a", "a"); !errors.Is(err, ErrDuplicateStrategy) {
		t.Errorf("alias over id err = %v, want ErrDuplicateStrategy", err)
	}
	if err := r.Alias("b", "a"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	if err := r.Register("b", noop); !errors.Is(err, ErrDuplicateStrategy) {
		t.Errorf("register over alias err = %v, want ErrDuplicateStrategy", err)
	}
	if _, err := r.Lookup("b"); err != nil {
		t.Errorf("lookup alias: %v", err)
	}
	if got := r.IDs(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("IDs = %v, want [a]", got)
	}
}
