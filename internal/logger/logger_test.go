package logger

import (
	"testing"

	"github.com/Suhaibinator/SBlog/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     config.LoggingConfig
		enabled zapcore.Level
		dropped zapcore.Level
	}{
		{cfg: config.LoggingConfig{Level: "info", Format: "json"}, enabled: zapcore.InfoLevel, dropped: zapcore.DebugLevel},
		{cfg: config.LoggingConfig{Level: "warn", Format: "console"}, enabled: zapcore.ErrorLevel, dropped: zapcore.InfoLevel},
		{cfg: config.LoggingConfig{Level: "debug", Format: "json"}, enabled: zapcore.DebugLevel, dropped: zapcore.DebugLevel - 1},
	}

	for _, tt := range tests {
		logger, err := New(tt.cfg)
		if err != nil {
			t.Fatalf("New(%+v) failed: %v", tt.cfg, err)
		}
		if !logger.Core().Enabled(tt.enabled) {
			t.Errorf("%+v: expected %s to be enabled", tt.cfg, tt.enabled)
		}
		if logger.Core().Enabled(tt.dropped) {
			t.Errorf("%+v: expected %s to be disabled", tt.cfg, tt.dropped)
		}
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
