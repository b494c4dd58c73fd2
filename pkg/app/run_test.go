package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/idrsched/internal/controlplane"
	"github.com/flemzord/idrsched/internal/controlplane/controlplanetest"
	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/internal/strategy"
	"github.com/flemzord/idrsched/internal/supervisor"
)

const doc = `accessServer: access.example
port: "10101"
userId: admin
password: c2VhbGVk
subscriptions:
  - subscriptionId: S1
    subscriptionName: ORDERS
    sourceDataStore: DS
    cronPattern: "0 0 1 1 *"
    loaderClass: SimpleSubscriptionStarter
    enabled: true
  - subscriptionId: S2
    subscriptionName: CUSTOMERS
    sourceDataStore: DS
    cronPattern: "0 0 1 1 *"
    loaderClass: com.example.Missing
    enabled: true
`

// writeDoc writes the schedule document and a key.dat next to it.
func writeDoc(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeKey(t, filepath.Join(dir, "key.dat"))
	return path
}

func writeKey(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("000102030405060708090a0b0c0d0e0f\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
}

func TestResolveKeyFile(t *testing.T) {
	t.Setenv(KeyFileEnv, "")

	if got := ResolveKeyFile("/explicit/key", "/etc/idr/schedule.yaml"); got != "/explicit/key" {
		t.Errorf("explicit: got %q", got)
	}
	if got := ResolveKeyFile("", "/etc/idr/schedule.yaml"); got != "/etc/idr/key.dat" {
		t.Errorf("default: got %q", got)
	}

	t.Setenv(KeyFileEnv, "/env/key")
	if got := ResolveKeyFile("", "/etc/idr/schedule.yaml"); got != "/env/key" {
		t.Errorf("env: got %q", got)
	}
}

func TestDefaultConfigPath_XDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := DefaultConfigPath(); got != "/custom/config/idrsched/schedule.yaml" {
		t.Errorf("got %q", got)
	}
}

func TestBuild_RequiresConfigPath(t *testing.T) {
	t.Parallel()

	if _, err := Build(context.Background(), RunParams{}); !errors.Is(err, supervisor.ErrNoConfigPath) {
		t.Fatalf("err = %v, want ErrNoConfigPath", err)
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	key := filepath.Join(t.TempDir(), "key.dat")
	writeKey(t, key)

	// A configuration that does not load is not a crash: Run returns cleanly.
	if err := Run(RunParams{ConfigPath: "/nonexistent/schedule.yaml", KeyFile: key}); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}

func TestBuild_MissingKeyFileIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	badKey := filepath.Join(dir, "short.dat")
	if err := os.WriteFile(badKey, []byte("0011"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{filepath.Join(dir, "does-not-exist.dat"), badKey} {
		rt, err := Build(context.Background(), RunParams{
			ConfigPath: writeDoc(t),
			KeyFile:    key,
			Dialer:     controlplanetest.NewMockDialer(controlplane.StatusActive),
		})
		if !errors.Is(err, seal.ErrKeyFile) {
			t.Errorf("Build(%s) err = %v, want ErrKeyFile", key, err)
		}
		if rt != nil {
			t.Errorf("Build(%s) returned a runtime", key)
		}
	}
}

func TestBuild_RunsAndStops(t *testing.T) {
	t.Parallel()

	path := writeDoc(t)
	rt, err := Build(context.Background(), RunParams{
		ConfigPath:   path,
		AdminAddr:    "127.0.0.1:0",
		WaitInterval: 50 * time.Millisecond,
		Dialer:       controlplanetest.NewMockDialer(controlplane.StatusActive),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Gateway == nil {
		t.Fatal("admin gateway not wired")
	}

	done := make(chan error, 1)
	go func() { done <- rt.Supervisor.Run(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for rt.Supervisor.State() != supervisor.StateRunning && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ids := rt.Manager.IDs(); len(ids) != 1 || ids[0] != "S1" {
		t.Errorf("scheduled = %v, want [S1]", ids)
	}

	rt.Supervisor.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	reg := strategy.Builtin(controlplanetest.NewMockDialer(controlplane.StatusActive), nil)
	cfg, res, err := Check(writeDoc(t), reg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if cfg.AccessServer != "access.example" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(res.Scheduled) != 1 || res.Scheduled[0] != "S1" {
		t.Errorf("scheduled = %v", res.Scheduled)
	}
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, strategy.ErrUnknownStrategy) {
		t.Errorf("skipped = %v", res.Skipped)
	}
}

func TestCheck_Missing(t *testing.T) {
	t.Parallel()

	reg := strategy.NewRegistry()
	if _, _, err := Check(filepath.Join(t.TempDir(), "none.yaml"), reg); err == nil {
		t.Error("expected error for missing file")
	}
}
