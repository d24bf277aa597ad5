package vault

import (
	"log/slog"
	"testing"
	"time"
)

func TestNewSweeper_Defaults(t *testing.T) {
	logger := slog.Default()
	sw := NewSweeper(nil, nil, nil, 0, 0, logger)
	if sw.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", sw.interval, DefaultSweepInterval)
	}
	if sw.window != DefaultSweepWindow {
		t.Errorf("window = %v, want %v", sw.window, DefaultSweepWindow)
	}
}

func TestNewSweeper_ExplicitValues(t *testing.T) {
	logger := slog.Default()
	sw := NewSweeper(nil, nil, nil, 10*time.Minute, 30*time.Minute, logger)
	if sw.interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", sw.interval)
	}
	if sw.window != 30*time.Minute {
		t.Errorf("window = %v, want 30m", sw.window)
	}
}
