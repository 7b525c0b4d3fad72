// Package singleton keeps at most one live daemon per working directory and
// implements the start/stop/restart takeover protocol on top of an advisory
// lock.
package singleton

import (
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

const (
	// DefaultPollInterval is the pause between lock queries while waiting
	// for a previous instance to exit.
	DefaultPollInterval = time.Second

	// DefaultTimeout is the lock wait budget when none is configured.
	DefaultTimeout = 60 * time.Second

	// progressEvery is the number of polls between progress messages.
	progressEvery = 10
)

// Outcome describes how Acquire ended when it did not fail.
type Outcome int

const (
	// Acquired means the lock was free and is now held.
	Acquired Outcome = iota
	// Replaced means a previous instance was terminated and the lock is now
	// held.
	Replaced
	// NothingToStop means stop mode found no running instance.
	NothingToStop
)

func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case Replaced:
		return "replaced"
	case NothingToStop:
		return "nothing_to_stop"
	default:
		return "unknown"
	}
}

// Takeover runs the lock protocol against a probe. Sleep and Signaller are
// injected so the waits can be simulated.
type Takeover struct {
	Probe     domain.LockProbe
	Signaller domain.ProcessSignaller
	Report    domain.StartupReporter
	Sleep     domain.Sleeper
	Timeout   time.Duration
	Interval  time.Duration
}

func (t *Takeover) interval() time.Duration {
	if t.Interval <= 0 {
		return DefaultPollInterval
	}
	return t.Interval
}

// maxPolls converts the timeout budget into a poll count.
func (t *Takeover) maxPolls() int {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	n := int(timeout / t.interval())
	if n < 1 {
		n = 1
	}
	return n
}

// Acquire applies mode to the current lock holder. In stop mode the lock is
// held on return too; the caller exits and the lock goes with it.
func (t *Takeover) Acquire(mode domain.RunMode) (Outcome, error) {
	sleep := t.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	holder, err := t.Probe.TryLock()
	if err != nil {
		t.Report.Errorf("fcntl error: %v", err)
		return 0, fmt.Errorf("%w: %w", ErrLockQuery, err)
	}
	if holder == 0 {
		if mode == domain.RunModeStop {
			t.Report.Infof("can't find process to terminate")
			return NothingToStop, nil
		}
		t.Report.Infof("lockfile created and locked")
		return Acquired, nil
	}

	if mode == domain.RunModeStart {
		t.Report.Errorf("can't start: lockfile is already locked by another process (pid:%d)", holder)
		return 0, ErrAlreadyLocked
	}

	if err := t.terminate(holder); err != nil {
		return 0, err
	}
	t.Report.Infof("waiting for termination of %s ...", t.Signaller.Describe(holder))

	limit := t.maxPolls()
	for polls := 1; ; polls++ {
		sleep(t.interval())

		current, err := t.Probe.TryLock()
		if err != nil {
			t.Report.Errorf("fcntl error: %v", err)
			return 0, fmt.Errorf("%w: %w", ErrLockQuery, err)
		}
		if current == 0 {
			t.Report.Infof("lock owner has been terminated")
			return Replaced, nil
		}

		if current != holder {
			t.Report.Infof("new lock owner detected (pid:%d)", current)
			if err := t.terminate(current); err != nil {
				return 0, err
			}
			holder = current
		}

		if polls >= limit {
			t.Report.Errorf("about %d seconds passed and lockfile is still locked - giving up",
				int(time.Duration(polls)*t.interval()/time.Second))
			return 0, fmt.Errorf("%w (pid:%d)", ErrLockTimeout, holder)
		}
		if polls%progressEvery == 0 {
			t.Report.Infof("about %d seconds passed and lock still exists",
				int(time.Duration(polls)*t.interval()/time.Second))
		}
	}
}

// terminate signals pid. A holder that already exited is not an error; the
// next poll sees the lock free.
func (t *Takeover) terminate(pid int) error {
	t.Report.Infof("sending SIGTERM to lock owner (pid:%d)", pid)
	if err := t.Signaller.Terminate(pid); err != nil {
		if !t.Signaller.IsRunning(pid) {
			return nil
		}
		t.Report.Errorf("can't send SIGTERM to lock owner (pid:%d): %v", pid, err)
		return fmt.Errorf("%w (pid:%d): %w", ErrSignalFailed, pid, err)
	}
	return nil
}
