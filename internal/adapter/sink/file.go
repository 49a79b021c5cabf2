// Package sink provides ready-made port.Sink implementations.
package sink

import (
	"sync"

	"github.com/spf13/afero"

	"github.com/vertextoedge/resumefetch/internal/port"
)

// Driver is the slice of the fetch session a sink drives: re-signaling
// demand after consuming a chunk, and tearing the session down when the
// sink itself fails.
type Driver interface {
	Demand()
	Abort()
}

// File streams delivered chunks into a file and re-signals demand after
// each write, so the session keeps flowing without a separate pump. A
// write failure aborts the session; the failure is reported from Wait.
type File struct {
	f      afero.File
	driver Driver

	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

// Ensure File implements port.Sink
var _ port.Sink = (*File)(nil)

// NewFile creates the output file on fs, truncating any existing one.
func NewFile(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f, done: make(chan struct{})}, nil
}

// Bind attaches the session driving this sink. Must be called before
// the first demand signal; the sink is constructed first because the
// session requires its sink at creation time.
func (s *File) Bind(driver Driver) {
	s.driver = driver
}

// Data implements port.Sink. A failed write settles the sink directly:
// the abort it triggers suppresses the session's own notifications.
func (s *File) Data(p []byte) {
	if _, err := s.f.Write(p); err != nil {
		s.f.Close()
		s.finish(err)
		if s.driver != nil {
			s.driver.Abort()
		}
		return
	}
	if s.driver != nil {
		s.driver.Demand()
	}
}

// End implements port.Sink
func (s *File) End() {
	s.finish(s.f.Close())
}

// Error implements port.Sink
func (s *File) Error(err error) {
	s.f.Close()
	s.finish(err)
}

// Wait blocks until the session delivered its terminal notification,
// returning the terminal error if there was one.
func (s *File) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *File) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}
