package sso

import (
	"log/slog"
	"testing"
	"time"
)

func TestNewSessionSweeper_Default(t *testing.T) {
	sw := NewSessionSweeper(nil, 0, slog.Default())
	if sw.interval != DefaultSessionSweepInterval {
		t.Errorf("interval = %v, want %v", sw.interval, DefaultSessionSweepInterval)
	}
}

func TestNewSessionSweeper_Explicit(t *testing.T) {
	sw := NewSessionSweeper(nil, 15*time.Minute, slog.Default())
	if sw.interval != 15*time.Minute {
		t.Errorf("interval = %v, want 15m", sw.interval)
	}
}
