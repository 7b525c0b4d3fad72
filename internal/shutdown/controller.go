// Package shutdown implements the termination and reload state machine.
//
// Signal handlers only raise flags through RequestTerminate and RequestReload.
// The event loop interprets the flags once per tick in Step, which is the only
// place hooks run.
package shutdown

import (
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
)

// Hooks is the read side of the hook registry used by Step.
type Hooks interface {
	Reloaders() iter.Seq[domain.Reloader]
	ExitNotifiers() iter.Seq[domain.ExitNotifier]
	ExitVoters() iter.Seq[domain.ExitVoter]
}

// Controller tracks termination progress and the pending reload flag.
type Controller struct {
	state     atomic.Int32
	terminate atomic.Bool
	reload    atomic.Bool
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewController creates a controller in the running state. m may be nil.
func NewController(logger *zap.Logger, m *metrics.Collector) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{logger: logger, metrics: m}
	m.SetState(domain.StateRunning)
	return c
}

// RequestTerminate records a termination request. Safe from any goroutine.
func (c *Controller) RequestTerminate() {
	c.terminate.Store(true)
}

// RequestReload records a reload request. Safe from any goroutine.
func (c *Controller) RequestReload() {
	c.reload.Store(true)
}

// State returns the current termination state.
func (c *Controller) State() domain.TerminationState {
	return domain.TerminationState(c.state.Load())
}

// ReloadPending reports whether a reload is waiting for the next tick.
func (c *Controller) ReloadPending() bool {
	return c.reload.Load()
}

// Stopped reports whether the loop may exit.
func (c *Controller) Stopped() bool {
	return c.State() == domain.StateStopped
}

// Step runs the reload and termination phases of one tick and returns the
// resulting state.
func (c *Controller) Step(h Hooks) domain.TerminationState {
	if c.State() == domain.StateRunning && c.reload.Load() {
		c.logger.Info("reloading")
		for r := range h.Reloaders() {
			r.Reload()
		}
		c.reload.Store(false)
	}

	if c.State() == domain.StateRunning && c.terminate.Load() {
		c.advance(domain.StateWantExitIssued)
	}

	if c.State() == domain.StateWantExitIssued {
		for n := range h.ExitNotifiers() {
			n.WantExit()
		}
		c.advance(domain.StateDraining)
	}

	if c.State() == domain.StateDraining && allCanExit(h) {
		c.advance(domain.StateStopped)
	}

	return c.State()
}

// allCanExit polls voters in dispatch order and stops at the first veto.
func allCanExit(h Hooks) bool {
	for v := range h.ExitVoters() {
		if !v.CanExit() {
			return false
		}
	}
	return true
}

func (c *Controller) advance(to domain.TerminationState) {
	from := c.State()
	if to <= from {
		return
	}
	c.state.Store(int32(to))
	c.metrics.SetState(to)
	c.logger.Info("termination state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to))
}
