package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

func TestResolveMode(t *testing.T) {
	defer func() { forceStart, forceStop = false, false }()

	tests := []struct {
		name  string
		start bool
		stop  bool
		args  []string
		want  domain.RunMode
	}{
		{name: "default", want: domain.RunModeRestart},
		{name: "-f", start: true, want: domain.RunModeStart},
		{name: "-s", stop: true, want: domain.RunModeStop},
		{name: "positional wins", stop: true, args: []string{"START"}, want: domain.RunModeStart},
		{name: "positional restart", args: []string{"restart"}, want: domain.RunModeRestart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forceStart, forceStop = tt.start, tt.stop
			got, err := resolveMode(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMode_Unknown(t *testing.T) {
	_, err := resolveMode([]string{"reload"})
	require.Error(t, err)
}

func TestPrintVersion(t *testing.T) {
	defer func() { jsonOutput = false }()
	var buf bytes.Buffer

	printVersion(&buf)
	assert.Contains(t, buf.String(), "lifecycled "+Version)

	buf.Reset()
	jsonOutput = true
	printVersion(&buf)
	assert.JSONEq(t, `{"version":"`+Version+`","commit":"`+Commit+`","build_time":"`+BuildTime+`"}`, buf.String())
}

func TestRootCommand_RejectsUnknownMode(t *testing.T) {
	rootCmd.SetArgs([]string{"bogus"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	defer rootCmd.SetArgs(nil)

	require.Error(t, rootCmd.Execute())
}
