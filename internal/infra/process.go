// Package infra implements the operating-system glue of the daemon core:
// signalling other processes, privileges, resource limits and logging.
package infra

import (
	"fmt"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// ProcessSignallerImpl implements domain.ProcessSignaller using gopsutil.
type ProcessSignallerImpl struct{}

// NewProcessSignaller creates a new process signaller.
func NewProcessSignaller() domain.ProcessSignaller {
	return &ProcessSignallerImpl{}
}

// Terminate sends SIGTERM to pid.
func (ps *ProcessSignallerImpl) Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.SendSignal(syscall.SIGTERM)
}

// Describe returns "name (pid:N)", or just the pid when the process is gone.
func (ps *ProcessSignallerImpl) Describe(pid int) string {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Sprintf("pid:%d", pid)
	}
	name, err := p.Name()
	if err != nil || name == "" {
		return fmt.Sprintf("pid:%d", pid)
	}
	return fmt.Sprintf("%s (pid:%d)", name, pid)
}

// IsRunning checks if a PID exists.
func (ps *ProcessSignallerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Ensure ProcessSignallerImpl implements domain.ProcessSignaller.
var _ domain.ProcessSignaller = (*ProcessSignallerImpl)(nil)
