package systemd

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGetListeners_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners failed: %v", err)
	}
	if listeners.Activated || listeners.API != nil || listeners.Metrics != nil {
		t.Errorf("Expected no activated listeners, got %+v", listeners)
	}
}

func TestNotify_OutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if err := NotifyReady(); err != nil {
		t.Errorf("NotifyReady failed: %v", err)
	}
	if err := NotifyStopping(); err != nil {
		t.Errorf("NotifyStopping failed: %v", err)
	}
}

func TestRunWatchdog_Disabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	done := make(chan struct{})
	go func() {
		RunWatchdog(context.Background(), zerolog.Nop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog did not return with the watchdog disabled")
	}
}
