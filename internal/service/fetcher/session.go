package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/resumefetch/internal/domain"
	"github.com/vertextoedge/resumefetch/internal/port"
)

// Config contains fetch session configuration
type Config struct {
	// Path is the resource to fetch, passed verbatim to the client
	Path string

	// Client issues the actual requests
	Client port.Client

	// Sink receives delivered chunks and the terminal notification
	Sink port.Sink

	// Backoff decides the delay before each transient retry
	Backoff port.BackoffPolicy

	// HighWaterMark is the number of bytes one Demand call grants.
	// Defaults to 64KiB.
	HighWaterMark int

	// MaxAttempts is the transient-failure retry budget. Defaults to 5.
	MaxAttempts int

	// Logger is optional; a no-op logger is used when nil
	Logger *zap.Logger
}

// Session fetches one remote resource and delivers its bytes downstream
// exactly once, resuming from the last consumed byte after transient
// failures and premature closes. It owns at most one outstanding attempt
// at any time; each new attempt's range offset is the byte count already
// delivered, which is what makes the ordering guarantee sound.
//
// The consumer drives delivery by calling Demand; the session never
// pushes bytes that were not asked for. Exactly one terminal sink
// notification (End or Error) is delivered per session, and none at all
// after Abort.
type Session struct {
	cfg      Config
	logger   *zap.Logger
	readSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	state    domain.SessionState
	consumed int64
	credit   int64
	meta     *domain.ResourceMetadata
	started  bool

	tracker *integrityTracker
	gate    *gate

	doneOnce sync.Once
	done     chan struct{}
}

// New creates a fetch session. The session is idle until the first
// Demand call.
func New(cfg Config) (*Session, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("fetcher: path is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("fetcher: client is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("fetcher: sink is required")
	}
	if cfg.Backoff == nil {
		return nil, fmt.Errorf("fetcher: backoff policy is required")
	}
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 64 * 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	readSize := 32 * 1024
	if readSize > cfg.HighWaterMark {
		readSize = cfg.HighWaterMark
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		logger:   logger,
		readSize: readSize,
		ctx:      ctx,
		cancel:   cancel,
		state:    domain.StateIdle,
		tracker:  newIntegrityTracker(),
		gate:     newGate(cfg.Backoff, cfg.MaxAttempts),
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Demand signals that the consumer wants more data. The first call
// starts the fetch; each call grants up to HighWaterMark bytes of
// delivery credit. Calling Demand while delivery is already permitted
// is a benign no-op. Safe for concurrent use.
func (s *Session) Demand() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	if s.credit < int64(s.cfg.HighWaterMark) {
		s.credit = int64(s.cfg.HighWaterMark)
	}
	if !s.started {
		s.started = true
		s.state = domain.StateAwaitingResponse
		go s.loop()
	}
	s.cond.Broadcast()
}

// Abort terminates the session. It synchronously marks the session
// terminal; any in-flight request is torn down asynchronously, exactly
// once. After Abort the sink receives no further notifications of any
// kind. Idempotent and safe from any goroutine.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateAborted
	wasStarted := s.started
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	if !wasStarted {
		s.closeDone()
	}
	s.logger.Debug("session aborted", zap.String("path", s.cfg.Path))
}

// State returns the current session state
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BytesConsumed returns the count of bytes delivered downstream so far
func (s *Session) BytesConsumed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// Attempts returns the number of transient retries spent so far
func (s *Session) Attempts() int {
	return s.gate.Attempts()
}

// Done returns a channel closed once the session reaches a terminal
// state and all handles are released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Digest returns the hex SHA-256 of all delivered bytes. Only valid
// after the session completed.
func (s *Session) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateCompleted {
		return ""
	}
	return s.tracker.Finalize()
}

// maxStallResumes caps consecutive premature closes that delivered no
// new bytes; past it the session fails instead of hammering the server.
const maxStallResumes = 5

// loop is the resume controller: it runs attempts one at a time,
// deciding after each one whether to finalize, resume from the new
// offset, back off and retry, or fail. It is the only goroutine that
// touches the network or the sink.
func (s *Session) loop() {
	defer s.closeDone()
	defer s.cancel()

	stalls := 0
	for {
		a := &attempt{session: s, offset: s.BytesConsumed()}
		res := a.run(s.ctx)

		switch res.outcome {
		case outcomeCompleted:
			s.finish(nil)
			return

		case outcomeResume:
			// Premature close: the connection ended short of the
			// declared length. Resume immediately from the new offset
			// without consulting the gate or spending retry budget.
			if s.BytesConsumed() == a.offset {
				stalls++
				if stalls >= maxStallResumes {
					s.finish(fmt.Errorf("%d consecutive resumes delivered no new bytes: %w",
						stalls, domain.ErrStalled))
					return
				}
			} else {
				stalls = 0
			}
			s.logger.Debug("response ended short, resuming",
				zap.String("path", s.cfg.Path),
				zap.Int64("offset", s.BytesConsumed()))
			if !s.setState(domain.StateAwaitingResponse) {
				return
			}

		case outcomeTransient:
			delay, ok := s.gate.Next()
			if !ok {
				s.finish(domain.NewTransientError(res.err, s.gate.Attempts()))
				return
			}
			s.logger.Debug("transient failure, backing off",
				zap.String("path", s.cfg.Path),
				zap.Int("attempt", s.gate.Attempts()),
				zap.Duration("delay", delay),
				zap.Error(res.err))
			if !s.setState(domain.StateBackingOff) {
				return
			}
			if !sleepContext(s.ctx, delay) {
				return
			}
			if !s.setState(domain.StateAwaitingResponse) {
				return
			}

		case outcomeFatal:
			s.finish(res.err)
			return

		case outcomeAborted:
			return
		}
	}
}

// finish records the terminal state and delivers the single terminal
// notification. Notification is suppressed entirely when the session
// was aborted.
func (s *Session) finish(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.state = domain.StateCompleted
	} else {
		s.state = domain.StateFailed
	}
	s.mu.Unlock()

	if err == nil {
		s.logger.Debug("fetch completed",
			zap.String("path", s.cfg.Path),
			zap.Int64("bytes", s.BytesConsumed()))
		s.cfg.Sink.End()
	} else {
		s.logger.Debug("fetch failed",
			zap.String("path", s.cfg.Path),
			zap.Error(err))
		s.cfg.Sink.Error(err)
	}
}

// setState transitions to a non-terminal state, refusing if the session
// was aborted meanwhile. Returns false if the session is terminal.
func (s *Session) setState(state domain.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = state
	return true
}

// acceptMetadata validates a response's headers against the metadata
// captured from the first successful response, capturing it when this
// is the first. A diverging entity tag means the resource changed
// mid-fetch.
func (s *Session) acceptMetadata(info *port.ResponseInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		s.meta = &domain.ResourceMetadata{
			Length:   info.Length,
			ETag:     info.ETag,
			Checksum: info.Checksum,
		}
		s.logger.Debug("captured resource metadata",
			zap.String("path", s.cfg.Path),
			zap.Int64("length", info.Length),
			zap.String("etag", info.ETag))
	} else if !s.meta.Matches(info.ETag) {
		return fmt.Errorf("etag changed from %q to %q: %w",
			s.meta.ETag, info.ETag, domain.ErrResourceChanged)
	}
	if s.state.Terminal() {
		return s.ctx.Err()
	}
	s.state = domain.StateStreaming
	return nil
}

// waitDemand blocks until the consumer has outstanding demand. Returns
// false if the session was aborted while waiting.
func (s *Session) waitDemand() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.credit <= 0 && !s.state.Terminal() {
		s.cond.Wait()
	}
	return !s.state.Terminal()
}

// deliver hands one chunk to the integrity tracker and the sink,
// advancing the consumed offset. Returns false if the session was
// aborted and the chunk must not be delivered.
func (s *Session) deliver(p []byte) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.consumed += int64(len(p))
	s.credit -= int64(len(p))
	s.mu.Unlock()

	s.tracker.Update(p)
	s.cfg.Sink.Data(p)
	return true
}

// classifyEnd decides what a cleanly ended response means: completion
// when the declared length was reached (or none was declared), or a
// premature close that must be resumed. Completion verifies the rolling
// checksum against the declared one when the server supplied it.
//
// A response that delivered more bytes than declared still counts as
// complete; the checksum comparison is what catches real corruption.
func (s *Session) classifyEnd() attemptResult {
	s.mu.Lock()
	meta := s.meta
	consumed := s.consumed
	s.mu.Unlock()

	if meta.LengthKnown() && consumed < meta.Length {
		return attemptResult{outcome: outcomeResume}
	}

	digest := s.tracker.Finalize()
	if meta.Checksum != "" && digest != meta.Checksum {
		return attemptResult{
			outcome: outcomeFatal,
			err: fmt.Errorf("declared %s, streamed %s: %w",
				meta.Checksum, digest, domain.ErrChecksumMismatch),
		}
	}
	return attemptResult{outcome: outcomeCompleted}
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// sleepContext waits for d, returning false if ctx was canceled first
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
