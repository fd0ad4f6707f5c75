package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLeveled(t *testing.T) {
	for _, json := range []bool{false, true} {
		logger, level, err := NewLeveled(json, false)
		if err != nil {
			t.Fatalf("unexpected error (json=%v): %v", json, err)
		}
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("expected debug to be off by default")
		}

		SetDebug(level, true)
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("expected debug to be enabled after SetDebug")
		}

		SetDebug(level, false)
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Fatalf("expected debug to be disabled again")
		}
	}
}
