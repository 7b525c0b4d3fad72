package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// TestRegistry_DispatchIsReverseOfRegistration checks LIFO order for every category
func TestRegistry_DispatchIsReverseOfRegistration(t *testing.T) {
	r := NewRegistry()
	var got []string
	record := func(name string) func() { return func() { got = append(got, name) } }

	for _, name := range []string{"a", "b", "c"} {
		r.OnDestruct(domain.DestructFunc(record("destruct-" + name)))
		r.OnWantExit(domain.WantExitFunc(record("want-" + name)))
		r.OnReload(domain.ReloadFunc(record("reload-" + name)))
		r.OnEachTick(domain.TickFunc(record("tick-" + name)))
		n := name
		r.OnCanExit(domain.CanExitFunc(func() bool { got = append(got, "vote-"+n); return true }))
		r.OnPoll(domain.PollFuncs{DescribeFn: func(*domain.ReadinessSet) { got = append(got, "poll-"+n) }})
	}

	for h := range r.Destructors() {
		h.Destruct()
	}
	for h := range r.ExitNotifiers() {
		h.WantExit()
	}
	for h := range r.Reloaders() {
		h.Reload()
	}
	for h := range r.TickHooks() {
		h.OnTick()
	}
	for h := range r.ExitVoters() {
		h.CanExit()
	}
	for h := range r.Pollables() {
		h.Describe(nil)
	}

	assert.Equal(t, []string{
		"destruct-c", "destruct-b", "destruct-a",
		"want-c", "want-b", "want-a",
		"reload-c", "reload-b", "reload-a",
		"tick-c", "tick-b", "tick-a",
		"vote-c", "vote-b", "vote-a",
		"poll-c", "poll-b", "poll-a",
	}, got)
}

// TestRegistry_NoDeduplication verifies a hook registered twice runs twice
func TestRegistry_NoDeduplication(t *testing.T) {
	r := NewRegistry()
	calls := 0
	h := domain.TickFunc(func() { calls++ })
	r.OnEachTick(h)
	r.OnEachTick(h)

	for hook := range r.TickHooks() {
		hook.OnTick()
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, r.Counts()[CategoryEachTick])
}

// TestRegistry_EarlyBreak verifies iteration can stop at the first veto
func TestRegistry_EarlyBreak(t *testing.T) {
	r := NewRegistry()
	polled := 0
	r.OnCanExit(domain.CanExitFunc(func() bool { polled++; return true }))
	r.OnCanExit(domain.CanExitFunc(func() bool { polled++; return false }))

	for v := range r.ExitVoters() {
		if !v.CanExit() {
			break
		}
	}
	assert.Equal(t, 1, polled, "the veto registered last is polled first and stops the pass")
}

// TestRegistry_FreezePanicsOnLateRegistration verifies hooks cannot be added once the loop runs
func TestRegistry_FreezePanicsOnLateRegistration(t *testing.T) {
	r := NewRegistry()
	r.OnReload(domain.ReloadFunc(func() {}))
	r.Freeze()
	require.True(t, r.Frozen())

	assert.PanicsWithValue(t, "hooks: reload hook registered after the event loop started", func() {
		r.OnReload(domain.ReloadFunc(func() {}))
	})
	assert.Equal(t, 1, r.Counts()[CategoryReload])
}

// TestRegistry_EmptyCounts verifies a fresh registry reports zero hooks
func TestRegistry_EmptyCounts(t *testing.T) {
	counts := NewRegistry().Counts()
	assert.Len(t, counts, 6)
	for c, n := range counts {
		assert.Zero(t, n, "category %s", c)
	}
}
