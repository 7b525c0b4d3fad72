package modules

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// MinuteSeconds is the period of the minute-boundary timer.
const MinuteSeconds = 60

// Heartbeat logs liveness on a run-once timer and marks minute boundaries on
// a skip-mode timer.
type Heartbeat struct {
	period  uint32
	rt      *daemon.Runtime
	logger  *zap.Logger
	started int64

	ticks     uint64
	lastTicks uint64
	beats     uint64
	minutes   uint64
}

// NewHeartbeat creates a heartbeat firing every period seconds.
func NewHeartbeat(period uint32) *Heartbeat {
	return &Heartbeat{period: period}
}

func (h *Heartbeat) Name() string { return "heartbeat" }

func (h *Heartbeat) Init(rt *daemon.Runtime, _ io.Writer) error {
	h.rt = rt
	h.logger = rt.Logger().With(zap.String("module", h.Name()))
	h.started = rt.Now()

	if !rt.OnTimer(domain.TimerRunOnce, h.period, 0, h.beat) {
		return fmt.Errorf("heartbeat period %d rejected", h.period)
	}
	rt.OnTimer(domain.TimerSkip, MinuteSeconds, 0, h.minute)
	rt.OnEachTick(domain.TickFunc(func() { h.ticks++ }))
	return nil
}

func (h *Heartbeat) beat() {
	h.beats++
	h.logger.Info("heartbeat",
		zap.Int64("uptime_seconds", h.rt.Now()-h.started),
		zap.Uint64("ticks", h.ticks-h.lastTicks),
		zap.Uint64("beats", h.beats))
	h.lastTicks = h.ticks
}

func (h *Heartbeat) minute() {
	h.minutes++
	h.logger.Debug("minute boundary", zap.Int64("now", h.rt.Now()))
}

// Beats returns how often the heartbeat fired.
func (h *Heartbeat) Beats() uint64 { return h.beats }

// Minutes returns how many minute boundaries were observed.
func (h *Heartbeat) Minutes() uint64 { return h.minutes }

// Ticks returns the number of loop ticks seen.
func (h *Heartbeat) Ticks() uint64 { return h.ticks }
