package fetcher

import (
	"io"
	"sync"

	"github.com/vertextoedge/resumefetch/internal/domain"
)

type readEvent struct {
	data []byte
	err  error
}

// Reader adapts a Session to io.ReadCloser. Each Read call signals
// demand and blocks until the session delivers a chunk, ends, or fails.
// Close aborts the underlying session; a closed reader never sees the
// remaining bytes. Not safe for concurrent Read calls.
type Reader struct {
	session *Session
	events  chan readEvent
	closed  chan struct{}

	closeOnce sync.Once
	rem       []byte
	err       error
}

// NewReader creates a session for cfg and returns a pull-based reader
// over it. cfg.Sink must be nil; the reader installs its own.
func NewReader(cfg Config) (*Reader, error) {
	r := &Reader{
		events: make(chan readEvent),
		closed: make(chan struct{}),
	}
	cfg.Sink = &readerSink{r: r}
	session, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.session = session
	return r, nil
}

// Session returns the underlying fetch session, for inspecting state,
// attempts, and the final digest.
func (r *Reader) Session() *Session {
	return r.session
}

// Read implements io.Reader
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if len(r.rem) > 0 {
			n := copy(p, r.rem)
			r.rem = r.rem[n:]
			return n, nil
		}
		if r.err != nil {
			return 0, r.err
		}

		r.session.Demand()
		select {
		case ev := <-r.events:
			if ev.err != nil {
				r.err = ev.err
				return 0, r.err
			}
			r.rem = ev.data
		case <-r.closed:
			return 0, domain.ErrSessionClosed
		case <-r.session.Done():
			// An abort from outside this reader suppresses all sink
			// notifications, so no event will ever arrive. Done closes
			// only after the session's last sink callback returned and
			// event sends are unbuffered, so no chunk can be pending
			// here.
			r.err = domain.ErrSessionClosed
			return 0, r.err
		}
	}
}

// Close aborts the fetch. Idempotent.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.session.Abort()
		close(r.closed)
	})
	return nil
}

// readerSink feeds session output into the reader's event channel.
// Chunks are copied because the engine's buffer is only valid for the
// duration of the callback. Sends race against Close so the session's
// pump can never block on a reader nobody drains.
type readerSink struct {
	r *Reader
}

func (s *readerSink) Data(p []byte) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case s.r.events <- readEvent{data: buf}:
	case <-s.r.closed:
	}
}

func (s *readerSink) End() {
	select {
	case s.r.events <- readEvent{err: io.EOF}:
	case <-s.r.closed:
	}
}

func (s *readerSink) Error(err error) {
	select {
	case s.r.events <- readEvent{err: err}:
	case <-s.r.closed:
	}
}
