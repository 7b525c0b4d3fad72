package domain

// Destructor runs once during teardown.
type Destructor interface {
	Destruct()
}

// ExitNotifier is told once that the process wants to exit.
type ExitNotifier interface {
	WantExit()
}

// ExitVoter is polled every draining tick; false vetoes the stop for this tick.
type ExitVoter interface {
	CanExit() bool
}

// Reloader runs when a reload was requested while the process is running.
type Reloader interface {
	Reload()
}

// TickHook runs on every loop tick regardless of I/O activity.
type TickHook interface {
	OnTick()
}

// Pollable contributes descriptors to the readiness set and serves the
// results after the wait returns.
type Pollable interface {
	Describe(set *ReadinessSet)
	Serve(set *ReadinessSet)
}

// DestructFunc adapts a function to Destructor.
type DestructFunc func()

func (f DestructFunc) Destruct() { f() }

// WantExitFunc adapts a function to ExitNotifier.
type WantExitFunc func()

func (f WantExitFunc) WantExit() { f() }

// CanExitFunc adapts a function to ExitVoter.
type CanExitFunc func() bool

func (f CanExitFunc) CanExit() bool { return f() }

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func()

func (f ReloadFunc) Reload() { f() }

// TickFunc adapts a function to TickHook.
type TickFunc func()

func (f TickFunc) OnTick() { f() }

// PollFuncs adapts a describe/serve function pair to Pollable.
type PollFuncs struct {
	DescribeFn func(set *ReadinessSet)
	ServeFn    func(set *ReadinessSet)
}

func (p PollFuncs) Describe(set *ReadinessSet) {
	if p.DescribeFn != nil {
		p.DescribeFn(set)
	}
}

func (p PollFuncs) Serve(set *ReadinessSet) {
	if p.ServeFn != nil {
		p.ServeFn(set)
	}
}
