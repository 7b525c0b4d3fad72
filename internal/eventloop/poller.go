package eventloop

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// SysPoller waits with poll(2).
type SysPoller struct{}

// NewSysPoller returns the poll(2) backed poller.
func NewSysPoller() domain.Poller {
	return SysPoller{}
}

// Poll blocks until a descriptor is ready or timeout elapses. Errors are the
// raw errno values so callers can tell EINTR and EAGAIN apart.
func (SysPoller) Poll(fds []unix.PollFd, timeout time.Duration) (int, error) {
	return unix.Poll(fds, int(timeout/time.Millisecond))
}

var _ domain.Poller = SysPoller{}
