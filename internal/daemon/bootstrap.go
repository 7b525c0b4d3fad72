package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	// DetachedEnv marks the re-executed daemon process.
	DetachedEnv = "DAEMON_CORE_DETACHED"

	// diagFD is where the daemon finds the write end of the diagnostic pipe.
	diagFD = 3

	// readyMarker is written by a daemon that finished startup. Diagnostics
	// are text and never contain it.
	readyMarker byte = 0
)

// Sink is the startup diagnostic channel. Writes after Close are dropped.
type Sink struct {
	mu     sync.Mutex
	f      *os.File
	marked bool // the reader understands readyMarker
	closed bool
}

func newSink(f *os.File, marked bool) *Sink {
	return &Sink{f: f, marked: marked}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	return s.f.Write(p)
}

// Close releases the launcher. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// Ready tells the launcher startup succeeded and closes the channel. A
// channel closed without Ready reports failure, and the launcher then waits
// for the daemon's exit status.
func (s *Sink) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.marked {
		if _, err := s.f.Write([]byte{readyMarker}); err != nil {
			_ = s.f.Close()
			return err
		}
	}
	return s.f.Close()
}

// IsDetached reports whether this process was started by Launch.
func IsDetached() bool {
	return os.Getenv(DetachedEnv) == "1"
}

// Launcher re-executes the current binary as a detached daemon and relays its
// startup diagnostics.
type Launcher struct {
	Executable string
	Args       []string
	// Stderr receives the daemon's diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
}

// Launch starts the daemon and blocks until its diagnostic channel closes.
// A daemon that marked itself ready yields 0 and keeps running. Otherwise
// Launch waits for the daemon to exit and returns its status.
func (l *Launcher) Launch() (int, error) {
	executable := l.Executable
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return 1, err
		}
		executable = exe
	}
	stderr := l.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	r, w, err := os.Pipe()
	if err != nil {
		return 1, fmt.Errorf("pipe error: %w", err)
	}

	cmd := exec.Command(executable, l.Args...)
	cmd.Env = append(os.Environ(), DetachedEnv+"=1")
	cmd.ExtraFiles = []*os.File{w}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	// Stdio stays on the null device.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return 1, fmt.Errorf("fork error: %w", err)
	}
	_ = w.Close()

	relay := &statusRelay{w: stderr}
	_, _ = io.Copy(relay, r)
	_ = r.Close()
	if relay.ready {
		return 0, nil
	}

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

// statusRelay copies diagnostics and strips the ready marker.
type statusRelay struct {
	w     io.Writer
	ready bool
}

func (r *statusRelay) Write(p []byte) (int, error) {
	n := len(p)
	if bytes.IndexByte(p, readyMarker) >= 0 {
		r.ready = true
		p = bytes.ReplaceAll(p, []byte{readyMarker}, nil)
	}
	if len(p) > 0 {
		if _, err := r.w.Write(p); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Detach is called by the re-executed daemon. It adopts the diagnostic pipe
// and points stdin, stdout and stderr at the null device.
func Detach() (*Sink, error) {
	var st unix.Stat_t
	if err := unix.Fstat(diagFD, &st); err != nil {
		return nil, fmt.Errorf("diagnostic channel missing: %w", err)
	}
	unix.CloseOnExec(diagFD)
	sink := newSink(os.NewFile(diagFD, "diagnostics"), true)

	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return sink, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer null.Close()
	for fd := 0; fd <= 2; fd++ {
		if err := unix.Dup2(int(null.Fd()), fd); err != nil {
			return sink, fmt.Errorf("redirect fd %d: %w", fd, err)
		}
	}
	return sink, nil
}

// ForegroundSink returns a diagnostic channel on a duplicate of stderr. Ready
// only closes it.
func ForegroundSink() (*Sink, error) {
	fd, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup stderr: %w", err)
	}
	return newSink(os.NewFile(uintptr(fd), "diagnostics"), false), nil
}
