package eventloop

import (
	"sync/atomic"
	"time"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// Clock holds the process time latched once per tick. Every timer comparison
// and every module query within one tick sees the same values.
type Clock struct {
	wall   domain.WallClock
	sec    atomic.Int64
	micros atomic.Uint64
}

// NewClock creates a clock reading from wall (time.Now when nil) and latches it.
func NewClock(wall domain.WallClock) *Clock {
	if wall == nil {
		wall = time.Now
	}
	c := &Clock{wall: wall}
	c.Latch()
	return c
}

// Latch refreshes both timestamps from the wall clock.
func (c *Clock) Latch() {
	now := c.wall()
	c.sec.Store(now.Unix())
	c.micros.Store(uint64(now.UnixMicro()))
}

// Now returns the latched whole-second timestamp.
func (c *Clock) Now() int64 {
	return c.sec.Load()
}

// NowMicros returns the latched microsecond timestamp.
func (c *Clock) NowMicros() uint64 {
	return c.micros.Load()
}
