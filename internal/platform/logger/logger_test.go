package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestSetLevel(t *testing.T) {
	Initialize(Config{Level: "info", Format: "json"})
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, Level())
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))

	SetLevel("error")
	assert.False(t, Get().Core().Enabled(zapcore.WarnLevel))
}

func TestColorEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")

	t.Setenv("LOG_COLOR", "0")
	assert.False(t, colorEnabled())

	t.Setenv("LOG_COLOR", "true")
	assert.True(t, colorEnabled())
}
