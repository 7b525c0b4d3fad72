// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/singleton"
)

const (
	// HolderModeEnv makes a re-executed test binary act as a lock holder:
	// "modern" holds the working-directory lock, "legacy" the old pid file.
	HolderModeEnv = "DAEMON_CORE_HOLDER_MODE"
	// HolderPathEnv is the lock file the holder locks.
	HolderPathEnv = "DAEMON_CORE_HOLDER_PATH"
	// HolderIgnoreTermEnv makes the holder ignore SIGTERM.
	HolderIgnoreTermEnv = "DAEMON_CORE_HOLDER_IGNORE_TERM"
)

// LockHolder is a child process holding a lock until it is terminated.
type LockHolder struct {
	cmd  *exec.Cmd
	done chan error
}

// StartLockHolder re-executes the current test binary as a holder and waits
// until it owns the lock.
func StartLockHolder(mode, path string, ignoreTerm bool) (*LockHolder, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), HolderModeEnv+"="+mode, HolderPathEnv+"="+path)
	if ignoreTerm {
		cmd.Env = append(cmd.Env, HolderIgnoreTermEnv+"=1")
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &LockHolder{cmd: cmd, done: make(chan error, 1)}
	ready := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(out).ReadString('\n')
		ready <- strings.TrimSpace(line)
		_, _ = io.Copy(io.Discard, out)
		h.done <- cmd.Wait()
	}()

	select {
	case line := <-ready:
		if line != "ready" {
			h.Kill()
			return nil, fmt.Errorf("lock holder failed: %q", line)
		}
		return h, nil
	case <-time.After(10 * time.Second):
		h.Kill()
		return nil, fmt.Errorf("lock holder did not start")
	}
}

// PID returns the holder's process id.
func (h *LockHolder) PID() int {
	return h.cmd.Process.Pid
}

// Exited reports whether the holder exits within timeout.
func (h *LockHolder) Exited(timeout time.Duration) bool {
	select {
	case err := <-h.done:
		h.done <- err
		return true
	case <-time.After(timeout):
		return false
	}
}

// Kill force-stops the holder if it is still running.
func (h *LockHolder) Kill() {
	_ = h.cmd.Process.Kill()
}

// IsLockHolder reports whether this process was started by StartLockHolder.
func IsLockHolder() bool {
	return os.Getenv(HolderModeEnv) != ""
}

// RunLockHolder takes the requested lock, prints "ready" and waits for
// SIGTERM. It never returns.
func RunLockHolder() {
	terms := make(chan os.Signal, 1)
	if os.Getenv(HolderIgnoreTermEnv) == "1" {
		signal.Ignore(syscall.SIGTERM)
	} else {
		signal.Notify(terms, syscall.SIGTERM)
	}

	path := os.Getenv(HolderPathEnv)
	var err error
	switch os.Getenv(HolderModeEnv) {
	case "modern":
		err = holdModern(path)
	case "legacy":
		err = holdLegacy(path)
	default:
		err = fmt.Errorf("unknown holder mode")
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	fmt.Println("ready")
	<-terms
	os.Exit(0)
}

func holdModern(path string) error {
	lock, err := singleton.OpenFcntlLock(path)
	if err != nil {
		return err
	}
	holder, err := lock.TryLock()
	if err != nil {
		return err
	}
	if holder != 0 {
		return fmt.Errorf("already locked by %d", holder)
	}
	return lock.WritePID(os.Getpid())
}

func holdLegacy(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return err
	}
	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
}
