package modules

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/config"
)

// Default returns the reference daemon's modules. The log level module comes
// first so later modules already log at the configured level.
func Default(cfg *config.Config, app string, level zap.AtomicLevel) (*Registry, error) {
	return NewRegistry(
		NewLogLevel(cfg.Path, app, level),
		NewStatusPort(cfg.StatusSocket),
		NewHeartbeat(uint32(cfg.HeartbeatPeriod)),
	)
}
