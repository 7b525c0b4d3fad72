// Package usecase orchestrates daemon startup: process settings, the
// singleton lock, module initialization, the main loop and teardown.
package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/config"
	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/infra"
	"github.com/eliteGoblin/focusd/daemon_core/internal/singleton"
)

// Host applies process-wide operating system settings.
type Host interface {
	RaiseOpenFiles(n uint64) error
	UnlimitMemoryLock() error
	LockAllMemory() error
	SetNice(level int) error
	SetUmask(mask int) int
	IsRoot() bool
	EnterDataPath(path string) (string, error)
	ChangeIdentity(user, group string) (infra.Identity, error)
}

// LockFile is the working-directory singleton lock.
type LockFile interface {
	domain.LockProbe
	WritePID(pid int) error
	Path() string
	Close() error
}

// SignalHandler installs and removes the signal handlers.
type SignalHandler interface {
	Start()
	Stop()
}

// StatusSink is the launcher's diagnostic channel. Ready reports a completed
// startup; Close alone reports failure.
type StatusSink interface {
	io.Closer
	Ready() error
}

// DaemonUmask is applied before any lock file is created.
const DaemonUmask = 0o027

// Startup runs one launch of the daemon in the given run mode.
type Startup struct {
	Daemon       domain.Daemon
	Config       *config.Config
	LogUndefined bool

	Host      Host
	OpenLock  func(dir, app string) (LockFile, error)
	Signaller domain.ProcessSignaller
	Sleep     domain.Sleeper

	Runtime *daemon.Runtime
	Steps   []daemon.InitStep
	Signals SignalHandler
	Report  daemon.Reporter
	// Sink is the diagnostic channel; marked ready once initialization
	// succeeded and closed on every other path.
	Sink StatusSink

	Logger *zap.Logger
}

// NewStartup fills in the live collaborators.
func NewStartup(d domain.Daemon, cfg *config.Config, rt *daemon.Runtime, steps []daemon.InitStep, report daemon.Reporter, sink StatusSink) *Startup {
	return &Startup{
		Daemon:    d,
		Config:    cfg,
		Host:      infra.NewOSHost(),
		OpenLock:  openFcntlLock,
		Signaller: infra.NewProcessSignaller(),
		Sleep:     time.Sleep,
		Runtime:   rt,
		Steps:     steps,
		Signals:   daemon.NewSignalGuardian(rt.Control(), rt.Logger()),
		Report:    report,
		Sink:      sink,
		Logger:    rt.Logger(),
	}
}

func openFcntlLock(dir, app string) (LockFile, error) {
	return singleton.OpenInDir(dir, app)
}

// Execute performs the launch and returns the process exit code. The error,
// when set, has already been reported.
func (s *Startup) Execute(ctx context.Context) (int, error) {
	defer s.closeSink()
	cfg := s.Config
	mode := s.Daemon.Mode

	if s.LogUndefined {
		for _, key := range cfg.Defaulted {
			s.Logger.Info("config: using default value",
				zap.String("option", key),
				zap.String("value", cfg.Value(key)))
		}
	}
	if !cfg.Found {
		s.Report.Infof("can't load config file: %s - using defaults", cfg.Path)
	}

	s.applyLimits()

	if s.Host.IsRoot() {
		id, err := s.Host.ChangeIdentity(cfg.WorkingUser, cfg.WorkingGroup)
		if err != nil {
			s.Report.Errorf("can't change working user/group: %v", err)
			return 1, err
		}
		s.Logger.Info("set gid and uid",
			zap.Int("uid", id.UID),
			zap.Int("gid", id.GID))
	}

	dir, err := s.Host.EnterDataPath(cfg.DataPath)
	if err != nil {
		s.Report.Errorf("%v", err)
		return 1, err
	}
	s.Host.SetUmask(DaemonUmask)

	// Handlers are live for the whole lock phase.
	s.Signals.Start()
	defer s.Signals.Stop()

	timeout := time.Duration(cfg.LockTimeout) * time.Second
	legacy := &singleton.Legacy{
		Path:      cfg.LockFile,
		Signaller: s.Signaller,
		Report:    s.Report,
		Sleep:     s.Sleep,
		Timeout:   timeout,
	}
	if err := legacy.Check(mode); err != nil {
		return 1, err
	}

	lock, err := s.OpenLock(dir, s.Daemon.Name)
	if err != nil {
		s.Report.Errorf("%v", err)
		return 1, err
	}
	defer lock.Close()

	takeover := &singleton.Takeover{
		Probe:     lock,
		Signaller: s.Signaller,
		Report:    s.Report,
		Sleep:     s.Sleep,
		Timeout:   timeout,
	}
	outcome, err := takeover.Acquire(mode)
	if err != nil {
		return 1, err
	}
	if err := singleton.RemoveMarker(dir, s.Daemon.Name); err != nil {
		s.Logger.Warn("can't remove old lock marker", zap.Error(err))
	}

	if mode == domain.RunModeStop {
		s.Logger.Info("stop finished", zap.Stringer("outcome", outcome))
		return 0, nil
	}

	if err := lock.WritePID(s.Daemon.PID); err != nil {
		s.Logger.Warn("can't write pid to lockfile", zap.String("path", lock.Path()), zap.Error(err))
	}
	if cfg.LockMemory {
		if err := s.Host.LockAllMemory(); err != nil {
			s.Logger.Warn("memory lock failed", zap.Error(err))
		} else {
			s.Logger.Info("process memory was successfully locked in RAM")
		}
	}

	if err := s.Runtime.Initialize(s.Steps, s.Report); err != nil {
		s.Runtime.Destruct()
		return 1, err
	}
	s.Report.Infof("%s daemon initialized properly", s.Daemon.Name)
	s.Logger.Info("daemon started",
		zap.String("mode", string(mode)),
		zap.Bool("foreground", s.Daemon.Foreground),
		zap.String("version", s.Daemon.AppVersion),
		zap.Stringer("lock", outcome))
	s.markReady()

	runErr := s.Runtime.Run(ctx)
	s.Runtime.Destruct()
	if runErr != nil {
		s.Logger.Error("main loop failed", zap.Error(runErr))
		return 1, runErr
	}
	s.Logger.Info("process exited successfully")
	return 0, nil
}

func (s *Startup) applyLimits() {
	if err := s.Host.RaiseOpenFiles(domain.DefaultMaxDescriptors); err != nil {
		s.Logger.Warn("open files limit unchanged", zap.Error(err))
	}
	if s.Config.LockMemory {
		if err := s.Host.UnlimitMemoryLock(); err != nil {
			s.Logger.Warn("memlock limit unchanged", zap.Error(err))
		}
	}
	if err := s.Host.SetNice(s.Config.NiceLevel); err != nil {
		s.Logger.Warn("nice level unchanged", zap.Error(err))
	}
}

func (s *Startup) markReady() {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.Ready(); err != nil {
		s.Logger.Warn("can't report readiness to launcher", zap.Error(err))
	}
}

func (s *Startup) closeSink() {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.Logger.Debug("closing diagnostic channel", zap.Error(err))
	}
}
