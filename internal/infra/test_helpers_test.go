package infra

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
)

// fakeSyslog records messages per priority.
type fakeSyslog struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeSyslog) record(prio, m string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, fmt.Sprintf("%s %s", prio, strings.TrimSpace(m)))
	return nil
}

func (f *fakeSyslog) Debug(m string) error   { return f.record("debug", m) }
func (f *fakeSyslog) Info(m string) error    { return f.record("info", m) }
func (f *fakeSyslog) Warning(m string) error { return f.record("warning", m) }
func (f *fakeSyslog) Err(m string) error     { return f.record("err", m) }
func (f *fakeSyslog) Crit(m string) error    { return f.record("crit", m) }

func (f *fakeSyslog) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

// safeBuffer is a bytes.Buffer usable as a diagnostic channel.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
