package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cargoabi/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", logging.DefaultLevel},
		{"debug", zapcore.DebugLevel},
		{" INFO ", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logging.ParseLevel("chatty")
	assert.ErrorContains(t, err, logging.EnvVar)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, zapcore.InfoLevel)

	log.Debug("hidden")
	log.Info("invoking cargo", zap.String("command", "cargo metadata"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "invoking cargo")
	assert.Contains(t, out, `"command": "cargo metadata"`)
}
