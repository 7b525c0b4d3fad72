package singleton

import (
	"errors"
	"fmt"
	"time"
)

// scriptedProbe returns holders in order and repeats the last one.
type scriptedProbe struct {
	holders []int
	errAt   int
	calls   int
}

func (p *scriptedProbe) TryLock() (int, error) {
	p.calls++
	if p.errAt > 0 && p.calls == p.errAt {
		return -1, errors.New("bad file descriptor")
	}
	i := p.calls - 1
	if i >= len(p.holders) {
		i = len(p.holders) - 1
	}
	return p.holders[i], nil
}

type mockSignaller struct {
	signalled []int
	fail      map[int]bool
	dead      map[int]bool
}

func (m *mockSignaller) Terminate(pid int) error {
	m.signalled = append(m.signalled, pid)
	if m.fail[pid] {
		return errors.New("operation not permitted")
	}
	return nil
}

func (m *mockSignaller) Describe(pid int) string {
	return fmt.Sprintf("pid %d", pid)
}

func (m *mockSignaller) IsRunning(pid int) bool {
	return !m.dead[pid]
}

type recordingReporter struct {
	infos  []string
	errors []string
}

func (r *recordingReporter) Infof(format string, args ...any) {
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

type sleepRecorder struct {
	total time.Duration
	calls int
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.total += d
	s.calls++
}
