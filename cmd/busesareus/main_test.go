package main

import (
	"context"
	"log/slog"
	"testing"

	"busesareus.org/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		settings config.LoggingSettings
		enabled  slog.Level
		disabled slog.Level
	}{
		{config.LoggingSettings{Level: "debug", Format: "text"}, slog.LevelDebug, slog.LevelDebug - 1},
		{config.LoggingSettings{Level: "info"}, slog.LevelInfo, slog.LevelDebug},
		{config.LoggingSettings{Level: "warn", Format: "json"}, slog.LevelWarn, slog.LevelInfo},
		{config.LoggingSettings{Level: "error", Format: "json"}, slog.LevelError, slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.settings.Level, func(t *testing.T) {
			logger := newLogger(tt.settings)
			if !logger.Enabled(context.Background(), tt.enabled) {
				t.Errorf("expected level %v to be enabled", tt.enabled)
			}
			if logger.Enabled(context.Background(), tt.disabled) {
				t.Errorf("expected level %v to be disabled", tt.disabled)
			}
		})
	}

	if _, ok := newLogger(config.LoggingSettings{Format: "json"}).Handler().(*slog.JSONHandler); !ok {
		t.Error("expected a JSON handler")
	}
}
