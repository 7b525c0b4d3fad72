package domain

import (
	"time"

	"golang.org/x/sys/unix"
)

// ProcessSignaller delivers termination requests to other processes.
// Implementation: gopsutil.
type ProcessSignaller interface {
	// Terminate sends SIGTERM to pid.
	Terminate(pid int) error

	// Describe returns a short human description of pid for diagnostics.
	Describe(pid int) string

	// IsRunning checks if a PID exists.
	IsRunning(pid int) bool
}

// LockProbe attempts a non-blocking exclusive lock.
// It returns 0 when the lock is now held by this process, otherwise the pid
// of the current holder.
type LockProbe interface {
	TryLock() (holder int, err error)
}

// Poller blocks until a descriptor in fds is ready or timeout elapses.
type Poller interface {
	Poll(fds []unix.PollFd, timeout time.Duration) (int, error)
}

// Sleeper pauses the caller; injected so retry loops are testable.
type Sleeper func(d time.Duration)

// WallClock returns the current wall-clock time.
type WallClock func() time.Time

// StartupReporter sends user-visible startup messages to both the system log
// and the launcher's diagnostic channel.
type StartupReporter interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}
