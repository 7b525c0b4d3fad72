package domain

import "golang.org/x/sys/unix"

// DefaultMaxDescriptors bounds how many descriptors one tick may describe.
const DefaultMaxDescriptors = 5000

// Readiness flags, identical to the poll(2) bits.
const (
	EventRead   int16 = unix.POLLIN
	EventWrite  int16 = unix.POLLOUT
	EventError  int16 = unix.POLLERR
	EventHangup int16 = unix.POLLHUP
)

// ReadinessSet is the bounded collection of descriptors assembled every tick
// for the blocking wait. Slots handed out by Add stay valid until Reset.
type ReadinessSet struct {
	fds      []unix.PollFd
	limit    int
	overflow int
}

// NewReadinessSet returns an empty set holding at most limit descriptors.
func NewReadinessSet(limit int) *ReadinessSet {
	if limit <= 0 {
		limit = DefaultMaxDescriptors
	}
	return &ReadinessSet{
		fds:   make([]unix.PollFd, 0, min(limit, 64)),
		limit: limit,
	}
}

// Reset drops every descriptor; called at the start of each tick.
func (s *ReadinessSet) Reset() {
	s.fds = s.fds[:0]
	s.overflow = 0
}

// Add requests readiness events for fd and returns its slot, or -1 when the
// set is full. A full set never grows.
func (s *ReadinessSet) Add(fd int, events int16) int {
	if fd < 0 {
		return -1
	}
	if len(s.fds) >= s.limit {
		s.overflow++
		return -1
	}
	s.fds = append(s.fds, unix.PollFd{Fd: int32(fd), Events: events})
	return len(s.fds) - 1
}

// Revents returns the readiness reported for slot, 0 for an invalid slot.
func (s *ReadinessSet) Revents(slot int) int16 {
	if slot < 0 || slot >= len(s.fds) {
		return 0
	}
	return s.fds[slot].Revents
}

// Ready reports whether any bit of mask is set for slot.
func (s *ReadinessSet) Ready(slot int, mask int16) bool {
	return s.Revents(slot)&mask != 0
}

// Len returns the number of described descriptors.
func (s *ReadinessSet) Len() int { return len(s.fds) }

// Limit returns the capacity bound.
func (s *ReadinessSet) Limit() int { return s.limit }

// Overflow returns how many Add calls were refused since the last Reset.
func (s *ReadinessSet) Overflow() int { return s.overflow }

// PollFds exposes the backing slice to the poller.
func (s *ReadinessSet) PollFds() []unix.PollFd { return s.fds }
