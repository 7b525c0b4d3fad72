// Package metrics exposes event-loop counters through a private prometheus
// registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// Collector groups the loop, timer and termination metrics.
type Collector struct {
	registry     *prometheus.Registry
	ticks        prometheus.Counter
	pollErrors   *prometheus.CounterVec
	overflow     prometheus.Counter
	timerFirings *prometheus.CounterVec
	state        prometheus.Gauge
	hooks        *prometheus.GaugeVec
}

// New creates a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	namespace = sanitize(namespace)
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Event loop ticks completed.",
		}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_poll_errors_total",
			Help:      "Failed readiness waits by kind.",
		}, []string{"kind"}),
		overflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_readiness_overflow_total",
			Help:      "Descriptors refused because the readiness set was full.",
		}),
		timerFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_firings_total",
			Help:      "Timer callbacks invoked by catch-up mode.",
		}, []string{"mode"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "termination_state",
			Help:      "0 running, 1 want-exit issued, 2 draining, 3 stopped.",
		}),
		hooks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hooks_registered",
			Help:      "Registered hooks by category.",
		}, []string{"category"}),
	}
	c.registry.MustRegister(
		c.ticks, c.pollErrors, c.overflow, c.timerFirings, c.state, c.hooks,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	return c
}

// Registry returns the registry holding every metric of this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Tick counts one completed loop pass.
func (c *Collector) Tick() {
	if c == nil {
		return
	}
	c.ticks.Inc()
}

// PollError counts a failed wait.
func (c *Collector) PollError(kind string) {
	if c == nil {
		return
	}
	c.pollErrors.WithLabelValues(kind).Inc()
}

// Overflow counts refused descriptors.
func (c *Collector) Overflow(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.overflow.Add(float64(n))
}

// TimerFired counts one timer callback.
func (c *Collector) TimerFired(mode domain.TimerMode) {
	if c == nil {
		return
	}
	c.timerFirings.WithLabelValues(mode.String()).Inc()
}

// SetState publishes the termination state.
func (c *Collector) SetState(s domain.TerminationState) {
	if c == nil {
		return
	}
	c.state.Set(float64(s))
}

// SetHooks publishes the hook count for a category.
func (c *Collector) SetHooks(category string, n int) {
	if c == nil {
		return
	}
	c.hooks.WithLabelValues(category).Set(float64(n))
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
