// Package logging builds the console logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvVar selects the log level: debug, info, warn or error.
const EnvVar = "CARGO_ABI_LOG"

// DefaultLevel keeps normal runs quiet.
const DefaultLevel = zapcore.WarnLevel

// ParseLevel maps an EnvVar value to a level. Empty means DefaultLevel.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return DefaultLevel, fmt.Errorf("%s: %w", EnvVar, err)
	}
	return l, nil
}

// New returns a console logger writing to w at level.
func New(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core).Named("cargo-abi")
}

// FromEnv builds the stderr logger configured by EnvVar. An unparseable
// level falls back to DefaultLevel and is reported through the logger.
func FromEnv() *zap.Logger {
	level, err := ParseLevel(os.Getenv(EnvVar))
	log := New(os.Stderr, level)
	if err != nil {
		log.Warn("ignoring log level", zap.Error(err))
	}
	return log
}
