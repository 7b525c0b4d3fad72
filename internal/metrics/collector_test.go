package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

func TestCollector_Counts(t *testing.T) {
	c := New("lifecycled")

	c.Tick()
	c.Tick()
	c.PollError("eagain")
	c.Overflow(3)
	c.Overflow(0)
	c.TimerFired(domain.TimerRunOnce)
	c.SetState(domain.StateDraining)
	c.SetHooks("poll", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollErrors.WithLabelValues("eagain")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.overflow))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.timerFirings.WithLabelValues("run_once")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.state))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.hooks.WithLabelValues("poll")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Tick()
		c.PollError("fatal")
		c.Overflow(1)
		c.TimerFired(domain.TimerSkip)
		c.SetState(domain.StateStopped)
		c.SetHooks("reload", 1)
	})
	assert.Nil(t, c.Registry())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "mfs_master", sanitize("mfs-master"))
	assert.Equal(t, "lifecycled", sanitize("LifecycleD"))
	assert.Equal(t, "a_b", sanitize("_a.b_"))
}
