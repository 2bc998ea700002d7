package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proppilot/indices/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "debug", want: zerolog.DebugLevel},
		{input: "info", want: zerolog.InfoLevel},
		{input: "INFO", want: zerolog.InfoLevel},
		{input: "warn", want: zerolog.WarnLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "fatal", want: zerolog.FatalLevel},
		{input: "nonsense", want: zerolog.InfoLevel},
		{input: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	log := New(cfg)
	require.NotNil(t, log)

	// Chained loggers are new instances; the parent is untouched.
	child := log.WithField("component", "test")
	assert.NotSame(t, log, child)

	withErr := log.WithError(assert.AnError)
	assert.NotSame(t, log, withErr)

	withFields := log.WithFields(map[string]interface{}{"a": 1, "b": "two"})
	assert.NotSame(t, log, withFields)
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	require.NotNil(t, log)

	// Must be safe to use everywhere a real logger is.
	log.Debug("ignored")
	log.Infof("ignored %d", 1)
	log.WithField("k", "v").Warn("ignored")
	log.WithError(assert.AnError).Error("ignored")
}
