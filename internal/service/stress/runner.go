// Package stress repeatedly drives fetch sessions against a target and
// verifies every delivered byte, while sampling process resource usage
// and recording per-fetch results.
package stress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/procfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vertextoedge/resumefetch/internal/adapter/backoff"
	"github.com/vertextoedge/resumefetch/internal/port"
	"github.com/vertextoedge/resumefetch/internal/service/fetcher"
	"github.com/vertextoedge/resumefetch/internal/util/ratelimiter"
)

// Config contains stress runner configuration
type Config struct {
	Target           string
	Workers          int
	Iterations       int
	HighWaterMark    int
	MaxAttempts      int
	MinDelay         time.Duration
	MaxDelay         time.Duration
	SampleInterval   time.Duration
	ProgressInterval time.Duration

	// ExpectChecksum, when set, is the hex SHA-256 every completed fetch
	// must match. The embedded fault server knows its own content.
	ExpectChecksum string

	// SavePayloadDir, when set, writes each completed payload there
	SavePayloadDir string
}

// DefaultConfig returns default stress configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:          4,
		Iterations:       10,
		HighWaterMark:    64 * 1024,
		MaxAttempts:      5,
		MinDelay:         backoff.DefaultMinDelay,
		MaxDelay:         backoff.DefaultMaxDelay,
		SampleInterval:   time.Second,
		ProgressInterval: 2 * time.Second,
	}
}

// Runner drives Workers × Iterations fetch sessions
type Runner struct {
	config    *Config
	client    port.Client
	store     port.ResultStore
	payloadFs afero.Fs
	logger    *zap.Logger
	progress  *ratelimiter.Limiter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	errs    *multierror.Error
	done    int
	wg      sync.WaitGroup
}

// New creates a new stress runner. payloadFs is only used when
// SavePayloadDir is configured.
func New(cfg *Config, client port.Client, store port.ResultStore, payloadFs afero.Fs, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = time.Second
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 2 * time.Second
	}
	if payloadFs == nil {
		payloadFs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:    cfg,
		client:    client,
		store:     store,
		payloadFs: payloadFs,
		logger:    logger,
		progress:  ratelimiter.New(cfg.ProgressInterval),
	}
}

// Start runs the stress workload to completion or until ctx is
// canceled, then returns the aggregated run summary. Fetch failures are
// outcomes recorded in the summary; the returned error only covers
// harness-level problems (store writes, payload saves, verification
// mismatches).
func (r *Runner) Start(ctx context.Context) (*port.RunSummary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("stress runner already running")
	}
	r.running = true
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	defer r.Stop()

	run := &port.Run{
		Target:    r.config.Target,
		Sessions:  r.config.Workers * r.config.Iterations,
		StartedAt: time.Now(),
	}
	if err := r.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	r.logger.Info("stress run started",
		zap.Int64("run_id", run.ID),
		zap.String("target", r.config.Target),
		zap.Int("workers", r.config.Workers),
		zap.Int("iterations", r.config.Iterations))

	samplerCtx, stopSampler := context.WithCancel(ctx)
	samplerDone := make(chan struct{})
	go r.sampleLoop(samplerCtx, run.ID, samplerDone)

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, run.ID, i)
	}
	r.wg.Wait()

	stopSampler()
	<-samplerDone

	if err := r.store.FinishRun(run.ID); err != nil {
		r.record(fmt.Errorf("finish run: %w", err))
	}

	summary, err := r.store.Summary(run.ID)
	if err != nil {
		r.record(fmt.Errorf("summarize run: %w", err))
	} else {
		r.logger.Info("stress run finished",
			zap.Int64("run_id", run.ID),
			zap.Int("total", summary.Total),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed),
			zap.Int64("bytes", summary.TotalBytes),
			zap.Uint64("max_rss", summary.MaxRSS))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return summary, r.errs.ErrorOrNil()
}

// Stop cancels a running workload
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.running = false
}

// worker fetches the target Iterations times
func (r *Runner) worker(ctx context.Context, runID int64, workerID int) {
	defer r.wg.Done()

	for iter := 0; iter < r.config.Iterations; iter++ {
		if ctx.Err() != nil {
			return
		}
		res := r.fetchOnce(ctx, workerID, iter)
		res.RunID = runID
		if err := r.store.RecordFetch(res); err != nil {
			r.record(fmt.Errorf("record fetch: %w", err))
		}

		r.mu.Lock()
		r.done++
		done := r.done
		r.mu.Unlock()
		if allowed, _ := r.progress.Allow(); allowed {
			r.logger.Info("stress progress",
				zap.Int("fetches_done", done),
				zap.Int("fetches_total", r.config.Workers*r.config.Iterations))
		}
	}
}

// fetchOnce runs a single fetch session end to end, recomputing the
// payload checksum on the consumer side.
func (r *Runner) fetchOnce(ctx context.Context, workerID, iter int) *port.FetchResult {
	res := &port.FetchResult{Worker: workerID}
	start := time.Now()

	reader, err := fetcher.NewReader(fetcher.Config{
		Path:          r.config.Target,
		Client:        r.client,
		Backoff:       backoff.NewExponential(r.config.MinDelay, r.config.MaxDelay),
		HighWaterMark: r.config.HighWaterMark,
		MaxAttempts:   r.config.MaxAttempts,
		Logger:        r.logger,
	})
	if err != nil {
		res.Outcome = port.OutcomeFailed
		res.Error = err.Error()
		return res
	}
	defer reader.Close()

	// Abort the session if the run is canceled mid-fetch
	stop := context.AfterFunc(ctx, func() { reader.Session().Abort() })
	defer stop()

	hash := sha256.New()
	n, err := io.Copy(hash, reader)

	res.Bytes = n
	res.Attempts = reader.Session().Attempts()
	res.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			res.Outcome = port.OutcomeAborted
			return res
		}
		res.Outcome = port.OutcomeFailed
		res.Error = err.Error()
		return res
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	if r.config.ExpectChecksum != "" && digest != r.config.ExpectChecksum {
		res.Outcome = port.OutcomeFailed
		res.Error = fmt.Sprintf("payload checksum %s does not match expected %s", digest, r.config.ExpectChecksum)
		r.record(fmt.Errorf("worker %d iter %d: delivered bytes corrupt", workerID, iter))
		return res
	}

	if r.config.SavePayloadDir != "" {
		if err := r.savePayload(workerID, iter, reader); err != nil {
			r.record(fmt.Errorf("save payload: %w", err))
		}
	}

	res.Outcome = port.OutcomeCompleted
	return res
}

// savePayload writes the session digest to a per-fetch file so a later
// inspection can match payloads to fetches.
func (r *Runner) savePayload(workerID, iter int, reader *fetcher.Reader) error {
	if err := r.payloadFs.MkdirAll(r.config.SavePayloadDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s/fetch-%d-%d.sha256", r.config.SavePayloadDir, workerID, iter)
	return afero.WriteFile(r.payloadFs, name, []byte(reader.Session().Digest()+"\n"), 0o644)
}

// sampleLoop periodically snapshots process resource usage
func (r *Runner) sampleLoop(ctx context.Context, runID int64, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := takeSample(runID)
			if err != nil {
				r.logger.Debug("resource sampling unavailable", zap.Error(err))
				return
			}
			if err := r.store.RecordSample(sample); err != nil {
				r.record(fmt.Errorf("record sample: %w", err))
			}
		}
	}
}

// takeSample reads the current process stats from /proc
func takeSample(runID int64) (*port.ResourceSample, error) {
	proc, err := procfs.Self()
	if err != nil {
		return nil, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return nil, err
	}
	fds, err := proc.FileDescriptorsLen()
	if err != nil {
		fds = -1
	}
	return &port.ResourceSample{
		RunID:       runID,
		TakenAt:     time.Now(),
		ResidentMem: uint64(stat.ResidentMemory()),
		OpenFDs:     fds,
		Goroutines:  runtime.NumGoroutine(),
	}, nil
}

func (r *Runner) record(err error) {
	r.mu.Lock()
	r.errs = multierror.Append(r.errs, err)
	r.mu.Unlock()
}
