// Package timer dispatches wall-clock anchored periodic callbacks.
package timer

import (
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
)

// entry is one registered timer. next is owned by the scheduler and only
// moves forward.
type entry struct {
	next   int64
	period int64
	mode   domain.TimerMode
	fn     func()
}

// Scheduler holds timers and runs the due ones once per tick.
type Scheduler struct {
	timers  []*entry
	metrics *metrics.Collector
}

// NewScheduler creates an empty scheduler. m may be nil.
func NewScheduler(m *metrics.Collector) *Scheduler {
	return &Scheduler{metrics: m}
}

// Register installs fn to run every period seconds, offset seconds past each
// multiple of period. now is the current tick second.
//
// A zero period or an offset not below period is refused: the timer is not
// installed and false is returned.
func (s *Scheduler) Register(now int64, mode domain.TimerMode, period, offset uint32, fn func()) bool {
	if period == 0 || offset >= period {
		return false
	}
	p := int64(period)
	next := (now/p)*p + int64(offset)
	for next < now {
		next += p
	}
	s.timers = append(s.timers, &entry{next: next, period: p, mode: mode, fn: fn})
	return true
}

// Len returns the number of installed timers.
func (s *Scheduler) Len() int {
	return len(s.timers)
}

// Run evaluates every timer against now, most recently registered first.
// Callbacks run inline; a slow callback delays the rest of the tick.
func (s *Scheduler) Run(now int64) {
	for i := len(s.timers) - 1; i >= 0; i-- {
		s.runOne(s.timers[i], now)
	}
}

func (s *Scheduler) runOne(t *entry, now int64) {
	switch t.mode {
	case domain.TimerRunAll:
		for now >= t.next {
			t.next += t.period
			s.fire(t)
		}
	case domain.TimerRunOnce:
		if now >= t.next {
			t.advancePast(now)
			s.fire(t)
		}
	default: // skip
		if now >= t.next {
			if now == t.next {
				s.fire(t)
			}
			t.advancePast(now)
		}
	}
}

func (s *Scheduler) fire(t *entry) {
	s.metrics.TimerFired(t.mode)
	t.fn()
}

func (t *entry) advancePast(now int64) {
	for now >= t.next {
		t.next += t.period
	}
}
