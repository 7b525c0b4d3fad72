package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

type idlePoller struct{ calls int }

func (p *idlePoller) Poll([]unix.PollFd, time.Duration) (int, error) {
	p.calls++
	return 0, nil
}

type testReporter struct {
	diag   bytes.Buffer
	infos  []string
	errors []string
}

func (r *testReporter) Infof(format string, args ...any) {
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func (r *testReporter) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.errors = append(r.errors, msg)
	fmt.Fprintln(&r.diag, msg)
}

func (r *testReporter) Diagnostics() io.Writer { return &r.diag }

func newTestRuntime(p *idlePoller) *Runtime {
	wall := time.Unix(5000, 0)
	return NewRuntime(Options{
		App:    "testd",
		Poller: p,
		Wall:   func() time.Time { wall = wall.Add(time.Second); return wall },
		Sleep:  func(time.Duration) {},
	})
}

// TestInitialize_StopsAtFirstFailure verifies a failing step aborts startup
// and later steps never run.
func TestInitialize_StopsAtFirstFailure(t *testing.T) {
	rt := newTestRuntime(&idlePoller{})
	rep := &testReporter{}
	var ran []string
	boom := errors.New("socket in use")

	steps := []InitStep{
		{Name: "one", Init: func(rt *Runtime, _ io.Writer) error {
			ran = append(ran, "one")
			rt.OnDestruct(domain.DestructFunc(func() { ran = append(ran, "destruct-one") }))
			return nil
		}},
		{Name: "two", Init: func(*Runtime, io.Writer) error { ran = append(ran, "two"); return boom }},
		{Name: "three", Init: func(*Runtime, io.Writer) error { ran = append(ran, "three"); return nil }},
	}

	err := rt.Initialize(steps, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"one", "two"}, ran)
	assert.Equal(t, []string{"init: two failed !!!"}, rep.errors)
	assert.Equal(t, "init: two failed !!!\n", rep.diag.String())
	assert.Equal(t, []string{"initializing testd modules ..."}, rep.infos)

	rt.Destruct()
	rt.Destruct()
	assert.Equal(t, []string{"one", "two", "destruct-one"}, ran)
}

// TestRun_VetoTwiceThenStop verifies a voter that refuses twice keeps the
// loop in Draining for exactly two extra ticks.
func TestRun_VetoTwiceThenStop(t *testing.T) {
	p := &idlePoller{}
	rt := newTestRuntime(p)
	wantExit, votes, ticks := 0, 0, 0
	var drainingTicks int

	require.NoError(t, rt.Initialize([]InitStep{{Name: "drain", Init: func(rt *Runtime, _ io.Writer) error {
		rt.OnWantExit(domain.WantExitFunc(func() { wantExit++ }))
		rt.OnCanExit(domain.CanExitFunc(func() bool {
			votes++
			return votes > 2
		}))
		rt.OnEachTick(domain.TickFunc(func() {
			ticks++
			if rt.Control().State() == domain.StateDraining {
				drainingTicks++
			}
		}))
		return nil
	}}}, &testReporter{}))

	rt.Control().RequestTerminate()
	require.NoError(t, rt.Run(context.Background()))

	assert.Equal(t, 1, wantExit)
	assert.Equal(t, 3, votes)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 2, drainingTicks)
	assert.Equal(t, 3, p.calls)
	assert.True(t, rt.Control().Stopped())
}

func TestRun_ContextCancelStops(t *testing.T) {
	rt := newTestRuntime(&idlePoller{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, rt.Run(ctx))
	assert.True(t, rt.Control().Stopped())
}

func TestOnTimer_RejectsMalformed(t *testing.T) {
	rt := newTestRuntime(&idlePoller{})

	assert.False(t, rt.OnTimer(domain.TimerRunAll, 0, 0, func() {}))
	assert.False(t, rt.OnTimer(domain.TimerRunAll, 10, 10, func() {}))
	assert.True(t, rt.OnTimer(domain.TimerSkip, 60, 0, func() {}))
}

func TestRegistrationAfterRunPanics(t *testing.T) {
	rt := newTestRuntime(&idlePoller{})
	rt.Control().RequestTerminate()
	require.NoError(t, rt.Run(context.Background()))

	assert.Panics(t, func() { rt.OnReload(domain.ReloadFunc(func() {})) })
	assert.Panics(t, func() { rt.OnTimer(domain.TimerRunOnce, 5, 0, func() {}) })
}

func TestClockQueriesAreLatched(t *testing.T) {
	rt := newTestRuntime(&idlePoller{})

	assert.Equal(t, int64(5001), rt.Now())
	assert.Equal(t, uint64(5001)*1_000_000, rt.NowMicros())
	assert.Equal(t, "testd", rt.App())
}
