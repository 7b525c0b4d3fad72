// Package domain contains the entities and capability interfaces shared by the
// daemon core and the modules plugged into it.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunMode selects what a launch does about an instance already holding the
// working directory.
type RunMode string

const (
	RunModeStart   RunMode = "start"
	RunModeStop    RunMode = "stop"
	RunModeRestart RunMode = "restart"
)

// ParseRunMode accepts start, stop or restart in any case.
func ParseRunMode(s string) (RunMode, error) {
	switch mode := RunMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case RunModeStart, RunModeStop, RunModeRestart:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown run mode %q (want start, stop or restart)", s)
	}
}

// StartsDaemon reports whether the mode ends with a running daemon.
func (m RunMode) StartsDaemon() bool {
	return m == RunModeStart || m == RunModeRestart
}

// TimerMode governs how a periodic timer catches up on missed firings.
type TimerMode int

const (
	// TimerRunAll fires once for every missed period.
	TimerRunAll TimerMode = iota
	// TimerRunOnce fires once no matter how many periods were missed.
	TimerRunOnce
	// TimerSkip fires only when a tick lands exactly on a boundary.
	TimerSkip
)

func (m TimerMode) String() string {
	switch m {
	case TimerRunAll:
		return "run_all"
	case TimerRunOnce:
		return "run_once"
	case TimerSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// TerminationState is the progress of an orderly shutdown.
type TerminationState int32

const (
	StateRunning TerminationState = iota
	StateWantExitIssued
	StateDraining
	StateStopped
)

func (s TerminationState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateWantExitIssued:
		return "want_exit_issued"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Daemon describes the running instance.
type Daemon struct {
	PID        int
	Name       string // application name, used for lock file names
	InstanceID string
	Mode       RunMode
	Foreground bool
	StartedAt  time.Time
	AppVersion string
}
