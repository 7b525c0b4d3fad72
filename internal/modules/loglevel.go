package modules

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/daemon_core/internal/config"
	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// LogLevel re-reads log_level from the configuration file on reload.
type LogLevel struct {
	path   string
	app    string
	level  zap.AtomicLevel
	load   func(path, app string) (*config.Config, error)
	logger *zap.Logger
}

// NewLogLevel creates the module for the config file at path.
func NewLogLevel(path, app string, level zap.AtomicLevel) *LogLevel {
	return &LogLevel{path: path, app: app, level: level, load: config.Load}
}

func (l *LogLevel) Name() string { return "loglevel" }

func (l *LogLevel) Init(rt *daemon.Runtime, _ io.Writer) error {
	l.logger = rt.Logger().With(zap.String("module", l.Name()))
	rt.OnReload(domain.ReloadFunc(l.Reload))
	return nil
}

// Reload applies the configured level. A config that fails to load keeps
// the current level.
func (l *LogLevel) Reload() {
	cfg, err := l.load(l.path, l.app)
	if err != nil {
		l.logger.Warn("reload: config not applied", zap.Error(err))
		return
	}
	next, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		l.logger.Warn("reload: bad log level", zap.String("log_level", cfg.LogLevel))
		return
	}
	prev := l.level.Level()
	if prev == next {
		return
	}
	l.level.SetLevel(next)
	l.logger.Info("log level changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next))
}
