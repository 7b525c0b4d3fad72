package modules

import (
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
)

type idlePoller struct{}

func (idlePoller) Poll([]unix.PollFd, time.Duration) (int, error) { return 0, nil }

// newSteppedRuntime returns a runtime whose clock advances one second per
// latch, starting at 1001.
func newSteppedRuntime(logger *zap.Logger) *daemon.Runtime {
	wall := time.Unix(1000, 0)
	return daemon.NewRuntime(daemon.Options{
		App:     "testd",
		Logger:  logger,
		Metrics: metrics.New("testd"),
		Poller:  idlePoller{},
		Wall: func() time.Time {
			wall = wall.Add(time.Second)
			return wall
		},
	})
}

// stopAfter returns an init step that requests termination on tick n.
func stopAfter(n int) daemon.InitStep {
	return daemon.InitStep{Name: "stopper", Init: func(rt *daemon.Runtime, _ io.Writer) error {
		ticks := 0
		rt.OnEachTick(domain.TickFunc(func() {
			ticks++
			if ticks == n {
				rt.Control().RequestTerminate()
			}
		}))
		return nil
	}}
}
