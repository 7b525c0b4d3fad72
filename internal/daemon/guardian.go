package daemon

import (
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Requester receives the flags raised by signals.
type Requester interface {
	RequestTerminate()
	RequestReload()
}

var (
	// TerminateSignals start the drain protocol.
	TerminateSignals = []os.Signal{syscall.SIGTERM}

	// ReloadSignals ask modules to re-read their settings.
	ReloadSignals = []os.Signal{syscall.SIGHUP}

	// IgnoredSignals keep terminal and job-control events away from the
	// daemon. SIGCHLD stays at its default so child processes can be reaped.
	IgnoredSignals = []os.Signal{
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGPIPE,
		syscall.SIGTSTP,
		syscall.SIGTTIN,
		syscall.SIGTTOU,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	}
)

// SignalGuardian turns process signals into termination and reload requests.
// It never runs hooks itself.
type SignalGuardian struct {
	target Requester
	logger *zap.Logger
	ch     chan os.Signal
	done   chan struct{}
	stop   sync.Once
}

// NewSignalGuardian creates a guardian forwarding to target.
func NewSignalGuardian(target Requester, logger *zap.Logger) *SignalGuardian {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalGuardian{
		target: target,
		logger: logger,
		ch:     make(chan os.Signal, 8),
		done:   make(chan struct{}),
	}
}

// Start installs the handlers.
func (g *SignalGuardian) Start() {
	signal.Ignore(IgnoredSignals...)
	signal.Notify(g.ch, append(append([]os.Signal{}, TerminateSignals...), ReloadSignals...)...)
	go g.run()
}

func (g *SignalGuardian) run() {
	for {
		select {
		case sig := <-g.ch:
			g.Dispatch(sig)
		case <-g.done:
			return
		}
	}
}

// Dispatch raises the flag that belongs to sig.
func (g *SignalGuardian) Dispatch(sig os.Signal) {
	switch {
	case slices.Contains(TerminateSignals, sig):
		g.logger.Info("terminate signal received", zap.Stringer("signal", sig))
		g.target.RequestTerminate()
	case slices.Contains(ReloadSignals, sig):
		g.logger.Info("reload signal received", zap.Stringer("signal", sig))
		g.target.RequestReload()
	}
}

// Stop uninstalls the handlers.
func (g *SignalGuardian) Stop() {
	g.stop.Do(func() {
		signal.Stop(g.ch)
		close(g.done)
	})
}

