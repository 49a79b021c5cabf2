package stress

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/vertextoedge/resumefetch/internal/adapter/faultserver"
	"github.com/vertextoedge/resumefetch/internal/adapter/httpclient"
	"github.com/vertextoedge/resumefetch/internal/adapter/sqlite"
)

func newTestRunner(t *testing.T, script faultserver.Script, tweak func(*Config)) (*Runner, afero.Fs) {
	t.Helper()

	srv := faultserver.New(script, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &Config{
		Target:         ts.URL + "/resource",
		Workers:        2,
		Iterations:     3,
		HighWaterMark:  16 * 1024,
		MaxAttempts:    5,
		MinDelay:       time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		SampleInterval: 10 * time.Millisecond,
		ExpectChecksum: srv.Checksum(),
	}
	if tweak != nil {
		tweak(cfg)
	}

	payloadFs := afero.NewMemMapFs()
	return New(cfg, httpclient.New(nil), store, payloadFs, nil), payloadFs
}

func TestRunner_CleanTarget(t *testing.T) {
	runner, _ := newTestRunner(t, faultserver.Script{Size: 64 * 1024, Seed: 1}, nil)

	summary, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if summary.Total != 6 {
		t.Errorf("Total = %d, want 6", summary.Total)
	}
	if summary.Completed != 6 {
		t.Errorf("Completed = %d, want 6", summary.Completed)
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0", summary.Failed)
	}
	if summary.TotalBytes != 6*64*1024 {
		t.Errorf("TotalBytes = %d, want %d", summary.TotalBytes, 6*64*1024)
	}
}

func TestRunner_FaultyTargetStillCompletes(t *testing.T) {
	runner, _ := newTestRunner(t, faultserver.Script{
		Size:          64 * 1024,
		Seed:          2,
		TruncateEvery: 20 * 1024,
	}, nil)

	summary, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if summary.Completed != 6 {
		t.Errorf("Completed = %d, want 6 despite truncations", summary.Completed)
	}
}

func TestRunner_SavesPayloadDigests(t *testing.T) {
	runner, payloadFs := newTestRunner(t, faultserver.Script{Size: 8 * 1024, Seed: 3}, func(cfg *Config) {
		cfg.Workers = 1
		cfg.Iterations = 2
		cfg.SavePayloadDir = "payloads"
	})

	if _, err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, name := range []string{"payloads/fetch-0-0.sha256", "payloads/fetch-0-1.sha256"} {
		data, err := afero.ReadFile(payloadFs, name)
		if err != nil {
			t.Fatalf("missing payload digest %s: %v", name, err)
		}
		if len(data) != 65 { // 64 hex chars plus newline
			t.Errorf("%s: unexpected digest file size %d", name, len(data))
		}
	}
}

func TestRunner_RecordsFailures(t *testing.T) {
	runner, _ := newTestRunner(t, faultserver.Script{
		Size:   8 * 1024,
		Seed:   4,
		Status: 404,
	}, func(cfg *Config) {
		cfg.Workers = 1
		cfg.Iterations = 2
		cfg.ExpectChecksum = ""
	})

	summary, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("Failed = %d, want 2", summary.Failed)
	}
	if summary.Completed != 0 {
		t.Errorf("Completed = %d, want 0", summary.Completed)
	}
}

func TestRunner_ChecksumVerificationCatchesCorruption(t *testing.T) {
	// Advertise a wrong expected checksum: every fetch then counts as
	// failed and the harness reports the corruption.
	runner, _ := newTestRunner(t, faultserver.Script{Size: 4 * 1024, Seed: 5}, func(cfg *Config) {
		cfg.Workers = 1
		cfg.Iterations = 1
		cfg.ExpectChecksum = "0000000000000000000000000000000000000000000000000000000000000000"
	})

	summary, err := runner.Start(context.Background())
	if err == nil {
		t.Error("Start() should report the verification mismatch")
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
}

func TestRunner_CancelStopsWorkers(t *testing.T) {
	runner, _ := newTestRunner(t, faultserver.Script{Size: 1024, Seed: 6}, func(cfg *Config) {
		cfg.Workers = 2
		cfg.Iterations = 10_000
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	summary, err := runner.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation took too long to stop the workers")
	}
	if summary.Total >= 20_000 {
		t.Error("run was not cut short by cancellation")
	}
}

func TestRunner_RejectsConcurrentStart(t *testing.T) {
	runner, _ := newTestRunner(t, faultserver.Script{Size: 1024, Seed: 7}, func(cfg *Config) {
		cfg.Workers = 1
		cfg.Iterations = 1
	})

	if _, err := runner.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	// A finished runner can be started again
	if _, err := runner.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
}
