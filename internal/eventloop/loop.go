// Package eventloop is the single blocking point of a daemon: it assembles the
// readiness set from every poll hook, waits, and dispatches the tick phases
// in a fixed order.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
	"github.com/eliteGoblin/focusd/daemon_core/internal/shutdown"
)

const (
	// DefaultWaitTimeout bounds each readiness wait so periodic work runs
	// even without I/O.
	DefaultWaitTimeout = 50 * time.Millisecond
	// DefaultRetryDelay is the pause after a transient wait failure.
	DefaultRetryDelay = 100 * time.Millisecond
)

// ErrPollFailed wraps a wait failure that ends the loop.
var ErrPollFailed = errors.New("eventloop: poll failed")

// Hooks is the read side of the hook registry used by the loop.
type Hooks interface {
	shutdown.Hooks
	Pollables() iter.Seq[domain.Pollable]
	TickHooks() iter.Seq[domain.TickHook]
}

// Timers runs the due periodic callbacks for a tick second.
type Timers interface {
	Run(now int64)
}

// Options wires the loop. Hooks, Timers and Control are required.
type Options struct {
	Hooks          Hooks
	Timers         Timers
	Control        *shutdown.Controller
	Clock          *Clock
	Poller         domain.Poller
	Sleep          domain.Sleeper
	MaxDescriptors int
	WaitTimeout    time.Duration
	RetryDelay     time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Collector
}

// Loop drives ticks until the termination state machine reports stopped.
type Loop struct {
	hooks       Hooks
	timers      Timers
	control     *shutdown.Controller
	clock       *Clock
	poller      domain.Poller
	sleep       domain.Sleeper
	set         *domain.ReadinessSet
	waitTimeout time.Duration
	retryDelay  time.Duration
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// New builds a loop, filling unset options with defaults.
func New(opts Options) *Loop {
	l := &Loop{
		hooks:       opts.Hooks,
		timers:      opts.Timers,
		control:     opts.Control,
		clock:       opts.Clock,
		poller:      opts.Poller,
		sleep:       opts.Sleep,
		set:         domain.NewReadinessSet(opts.MaxDescriptors),
		waitTimeout: opts.WaitTimeout,
		retryDelay:  opts.RetryDelay,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if l.clock == nil {
		l.clock = NewClock(nil)
	}
	if l.poller == nil {
		l.poller = NewSysPoller()
	}
	if l.sleep == nil {
		l.sleep = time.Sleep
	}
	if l.waitTimeout <= 0 {
		l.waitTimeout = DefaultWaitTimeout
	}
	if l.retryDelay <= 0 {
		l.retryDelay = DefaultRetryDelay
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Clock returns the tick clock.
func (l *Loop) Clock() *Clock {
	return l.clock
}

// Run ticks until the process is fully stopped. Cancelling ctx is treated as
// a termination request so the drain protocol still runs. A fatal wait
// failure is returned; teardown is the caller's job either way.
func (l *Loop) Run(ctx context.Context) error {
	for !l.control.Stopped() {
		if ctx.Err() != nil {
			l.control.RequestTerminate()
		}
		if err := l.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Tick performs one pass: describe, wait, latch clock, serve, each-tick,
// timers, reload and termination.
func (l *Loop) Tick() error {
	l.set.Reset()
	for p := range l.hooks.Pollables() {
		p.Describe(l.set)
	}
	if n := l.set.Overflow(); n > 0 {
		l.metrics.Overflow(n)
		l.logger.Warn("readiness set full, descriptors skipped this tick",
			zap.Int("limit", l.set.Limit()),
			zap.Int("skipped", n))
	}

	_, err := l.poller.Poll(l.set.PollFds(), l.waitTimeout)
	l.clock.Latch()

	switch {
	case err == nil:
		for p := range l.hooks.Pollables() {
			p.Serve(l.set)
		}
	case errors.Is(err, unix.EAGAIN):
		l.metrics.PollError("eagain")
		l.logger.Warn("poll returned EAGAIN")
		l.sleep(l.retryDelay)
		return nil
	case errors.Is(err, unix.EINTR):
		l.metrics.PollError("eintr")
	default:
		l.metrics.PollError("fatal")
		l.logger.Error("poll error", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPollFailed, err)
	}

	for h := range l.hooks.TickHooks() {
		h.OnTick()
	}
	l.timers.Run(l.clock.Now())
	l.control.Step(l.hooks)
	l.metrics.Tick()
	return nil
}
