package lifecycle

import (
	"testing"
	"time"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
}

func TestSetShuttingDown_True(t *testing.T) {
	SetShuttingDown(true)
	defer SetShuttingDown(false)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
}

func TestSetShuttingDown_False(t *testing.T) {
	SetShuttingDown(true)
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}

func TestUptime(t *testing.T) {
	MarkStarted(time.Now().Add(-90 * time.Second))
	defer MarkStarted(time.Now())

	got := Uptime()
	if got < 90*time.Second || got > 95*time.Second {
		t.Errorf("Uptime() = %v, want about 90s", got)
	}
	if got != got.Truncate(time.Second) {
		t.Errorf("Uptime() = %v, want whole seconds", got)
	}
}
