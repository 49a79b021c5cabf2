package sink

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// stubDriver records demand and abort calls
type stubDriver struct {
	demands int
	aborts  int
}

func (d *stubDriver) Demand() { d.demands++ }
func (d *stubDriver) Abort()  { d.aborts++ }

func TestFile_WritesChunksInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFile(fs, "out.bin")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	driver := &stubDriver{}
	s.Bind(driver)

	s.Data([]byte("hello "))
	s.Data([]byte("world"))
	s.End()

	if err := s.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if driver.demands != 2 {
		t.Errorf("demands = %d, want one per chunk", driver.demands)
	}

	got, err := afero.ReadFile(fs, "out.bin")
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("file content = %q", got)
	}
}

func TestFile_ErrorSurfacesFromWait(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFile(fs, "out.bin")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	s.Bind(&stubDriver{})

	terminal := errors.New("gave up after 5 attempts: unexpected status 503")
	s.Data([]byte("partial"))
	s.Error(terminal)

	if got := s.Wait(); got != terminal {
		t.Errorf("Wait() = %v, want the terminal error", got)
	}
}

func TestFile_WriteFailureAbortsSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFile(fs, "out.bin")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	driver := &stubDriver{}
	s.Bind(driver)

	// Closing the file out from under the sink makes the next write fail
	s.f.Close()
	s.Data([]byte("doomed"))

	if driver.aborts != 1 {
		t.Errorf("aborts = %d, want 1", driver.aborts)
	}
	if err := s.Wait(); err == nil {
		t.Error("Wait() should surface the write failure")
	}
}

func TestFile_WaitBlocksUntilTerminal(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFile(fs, "out.bin")
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	s.Bind(&stubDriver{})

	waited := make(chan error, 1)
	go func() { waited <- s.Wait() }()

	select {
	case <-waited:
		t.Fatal("Wait() returned before the terminal notification")
	case <-time.After(20 * time.Millisecond):
	}

	s.End()
	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after End")
	}
}

func TestNewFile_CreateFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	if _, err := NewFile(fs, "out.bin"); err == nil {
		t.Error("NewFile() on a read-only filesystem should fail")
	}
}
