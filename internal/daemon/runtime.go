// Package daemon assembles the process skeleton: the hook registry, timers,
// the termination state machine and the event loop, plus the signal guardian
// and the detach bootstrap.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/eventloop"
	"github.com/eliteGoblin/focusd/daemon_core/internal/hooks"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
	"github.com/eliteGoblin/focusd/daemon_core/internal/shutdown"
	"github.com/eliteGoblin/focusd/daemon_core/internal/timer"
)

// ErrInitFailed wraps the failure of an init step.
var ErrInitFailed = errors.New("module initialization failed")

// InitStep is one named module initializer. Steps run in table order and may
// rely on the hooks registered by earlier steps.
type InitStep struct {
	Name string
	Init func(rt *Runtime, diag io.Writer) error
}

// Reporter sends startup messages to the system log and the diagnostic
// channel.
type Reporter interface {
	domain.StartupReporter
	Diagnostics() io.Writer
}

// Options configures a Runtime. Everything is optional.
type Options struct {
	App            string
	Logger         *zap.Logger
	Metrics        *metrics.Collector
	Wall           domain.WallClock
	Poller         domain.Poller
	Sleep          domain.Sleeper
	MaxDescriptors int
}

// Runtime is the context object handed to modules.
type Runtime struct {
	app      string
	registry *hooks.Registry
	timers   *timer.Scheduler
	control  *shutdown.Controller
	clock    *eventloop.Clock
	loop     *eventloop.Loop
	logger   *zap.Logger
	metrics  *metrics.Collector

	destructed bool
}

// NewRuntime wires a fresh registry, scheduler, controller and loop.
func NewRuntime(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{
		app:      opts.App,
		registry: hooks.NewRegistry(),
		timers:   timer.NewScheduler(opts.Metrics),
		control:  shutdown.NewController(logger, opts.Metrics),
		clock:    eventloop.NewClock(opts.Wall),
		logger:   logger,
		metrics:  opts.Metrics,
	}
	rt.loop = eventloop.New(eventloop.Options{
		Hooks:          rt.registry,
		Timers:         rt.timers,
		Control:        rt.control,
		Clock:          rt.clock,
		Poller:         opts.Poller,
		Sleep:          opts.Sleep,
		MaxDescriptors: opts.MaxDescriptors,
		Logger:         logger,
		Metrics:        opts.Metrics,
	})
	return rt
}

// App returns the application name.
func (rt *Runtime) App() string { return rt.app }

// Logger returns the process logger.
func (rt *Runtime) Logger() *zap.Logger { return rt.logger }

// Metrics returns the metrics collector, possibly nil.
func (rt *Runtime) Metrics() *metrics.Collector { return rt.metrics }

// Control returns the termination and reload state machine.
func (rt *Runtime) Control() *shutdown.Controller { return rt.control }

// Now returns the second latched at the start of the current tick.
func (rt *Runtime) Now() int64 { return rt.clock.Now() }

// NowMicros returns the microsecond timestamp latched with Now.
func (rt *Runtime) NowMicros() uint64 { return rt.clock.NowMicros() }

func (rt *Runtime) OnDestruct(h domain.Destructor)  { rt.registry.OnDestruct(h) }
func (rt *Runtime) OnWantExit(h domain.ExitNotifier) { rt.registry.OnWantExit(h) }
func (rt *Runtime) OnCanExit(h domain.ExitVoter)     { rt.registry.OnCanExit(h) }
func (rt *Runtime) OnReload(h domain.Reloader)       { rt.registry.OnReload(h) }
func (rt *Runtime) OnPoll(h domain.Pollable)         { rt.registry.OnPoll(h) }
func (rt *Runtime) OnEachTick(h domain.TickHook)     { rt.registry.OnEachTick(h) }

// OnTimer installs a periodic callback. Timers with a zero period or an
// offset not below the period are refused and false is returned.
func (rt *Runtime) OnTimer(mode domain.TimerMode, period, offset uint32, fn func()) bool {
	if rt.registry.Frozen() {
		panic("hooks: timer hook registered after the event loop started")
	}
	if !rt.timers.Register(rt.clock.Now(), mode, period, offset, fn) {
		rt.logger.Warn("timer rejected",
			zap.Uint32("period", period),
			zap.Uint32("offset", offset),
			zap.Stringer("mode", mode))
		return false
	}
	return true
}

// Initialize runs steps in order and stops at the first failure. Steps after
// a failed one never run.
func (rt *Runtime) Initialize(steps []InitStep, report Reporter) error {
	report.Infof("initializing %s modules ...", rt.app)
	for _, step := range steps {
		rt.clock.Latch()
		if err := step.Init(rt, report.Diagnostics()); err != nil {
			report.Errorf("init: %s failed !!!", step.Name)
			rt.logger.Error("init step failed", zap.String("step", step.Name), zap.Error(err))
			return fmt.Errorf("%w: %s: %w", ErrInitFailed, step.Name, err)
		}
		rt.logger.Debug("init step done", zap.String("step", step.Name))
	}
	return nil
}

// Run freezes registration and drives the event loop until the process is
// stopped or the wait fails.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.registry.Freeze()
	rt.publishCounts()
	rt.clock.Latch()
	rt.logger.Info("main loop started", zap.Int("timers", rt.timers.Len()))
	err := rt.loop.Run(ctx)
	rt.logger.Info("main loop finished", zap.Stringer("state", rt.control.State()))
	return err
}

// Destruct runs the teardown hooks once, most recently registered first.
func (rt *Runtime) Destruct() {
	if rt.destructed {
		return
	}
	rt.destructed = true
	for d := range rt.registry.Destructors() {
		d.Destruct()
	}
	rt.logger.Info("modules destructed")
}

func (rt *Runtime) publishCounts() {
	counts := rt.registry.Counts()
	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, string(c))
	}
	sort.Strings(names)
	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		n := counts[hooks.Category(name)]
		rt.metrics.SetHooks(name, n)
		fields = append(fields, zap.Int(name, n))
	}
	rt.logger.Info("hooks registered", fields...)
}
