package cli

import (
	"context"
	"log/slog"
	"testing"

	"spendigo/internal/config"
	"spendigo/internal/log"
)

func TestSetupLoggerLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level)
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if got := logger.Enabled(context.Background(), slog.LevelWarn); got != tt.warn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warn)
			}
			if slog.Default() != logger {
				t.Error("SetupLogger did not set the default logger")
			}
		})
	}
}

func TestNewLLM(t *testing.T) {
	cfg := config.Load()
	cfg.LLMAPIKey = ""
	if llm := NewLLM(cfg, log.Nop()); llm != nil {
		t.Errorf("NewLLM without key = %T, want nil", llm)
	}

	cfg.LLMAPIKey = "k"
	if llm := NewLLM(cfg, log.Nop()); llm == nil {
		t.Error("NewLLM with key returned nil")
	}
}
