package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporter_WritesBothChannels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	diag := &safeBuffer{}
	r := NewReporter(zap.New(core), diag)

	r.Infof("lockfile created and locked")
	r.Errorf("init: %s failed !!!", "statusport")

	assert.Equal(t, "lockfile created and locked\ninit: statusport failed !!!\n", diag.String())
	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "init: statusport failed !!!", entries[1].Message)
	}
}

func TestReporter_WithoutDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewReporter(zap.New(core), nil)

	r.Infof("daemon initialized properly")
	assert.Equal(t, 1, logs.Len())

	diag := &safeBuffer{}
	r.SetDiagnostics(diag)
	r.Infof("again")
	assert.Equal(t, "again\n", diag.String())
	assert.Same(t, diag, r.Diagnostics())
}
