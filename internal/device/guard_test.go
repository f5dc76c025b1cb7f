package device

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestGuard_AcquireRelease(t *testing.T) {
	backend := NewLeaseBackend()
	guard := NewGuard(backend, "user-1", zerolog.Nop())

	h, err := guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := backend.Leased("user-1"); got != 2 {
		t.Errorf("expected 2 leased devices, got %d", got)
	}

	if !guard.Release(h) {
		t.Error("first Release should report release")
	}
	if guard.Release(h) {
		t.Error("second Release should be a no-op")
	}
	if !h.Released() {
		t.Error("handle should report released")
	}
	if got := backend.Leased("user-1"); got != 0 {
		t.Errorf("expected no leased devices after release, got %d", got)
	}

	if guard.Release(nil) {
		t.Error("Release(nil) should be a no-op")
	}
}

func TestGuard_AcquireFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(b *LeaseBackend)
		reason Reason
		device Kind
	}{
		{
			name:   "camera denied",
			setup:  func(b *LeaseBackend) { b.SetPermission("user-1", KindCamera, false) },
			reason: ReasonDenied,
			device: KindCamera,
		},
		{
			name:   "microphone missing",
			setup:  func(b *LeaseBackend) { b.SetPresent("user-1", KindMicrophone, false) },
			reason: ReasonNotFound,
			device: KindMicrophone,
		},
		{
			name: "microphone in use",
			setup: func(b *LeaseBackend) {
				_, _ = b.Open(context.Background(), "user-1", KindMicrophone)
			},
			reason: ReasonInUse,
			device: KindMicrophone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewLeaseBackend()
			tt.setup(backend)
			before := backend.Leased("user-1")

			guard := NewGuard(backend, "user-1", zerolog.Nop())
			h, err := guard.Acquire(context.Background())
			if h != nil {
				t.Fatal("expected no handle on failure")
			}

			var devErr *Error
			if !errors.As(err, &devErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if devErr.Reason != tt.reason || devErr.Device != tt.device {
				t.Errorf("got %s/%s, want %s/%s", devErr.Device, devErr.Reason, tt.device, tt.reason)
			}

			// A partially opened camera must not stay leased.
			if got := backend.Leased("user-1"); got != before {
				t.Errorf("leased devices = %d, want %d", got, before)
			}
		})
	}
}

func TestGuard_AcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	guard := NewGuard(NewLeaseBackend(), "user-1", zerolog.Nop())
	if _, err := guard.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGuard_UnclassifiedBackendError(t *testing.T) {
	boom := errors.New("driver crashed")
	guard := NewGuard(backendFunc(func(context.Context, string, Kind) (Track, error) {
		return nil, boom
	}), "user-1", zerolog.Nop())

	_, err := guard.Acquire(context.Background())
	var devErr *Error
	if !errors.As(err, &devErr) || devErr.Reason != ReasonUnsupported {
		t.Fatalf("expected unsupported device error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("device error should wrap the backend error")
	}
}

func TestHandle_EventsAndDispose(t *testing.T) {
	backend := NewLeaseBackend()
	guard := NewGuard(backend, "user-1", zerolog.Nop())

	h, err := guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var revoked, ended atomic.Int32
	dispose := h.Subscribe(func(ev Event) {
		switch ev.Type {
		case EventPermissionRevoked:
			revoked.Add(1)
		case EventTrackEnded:
			ended.Add(1)
		}
	})

	backend.SetPermission("user-1", KindCamera, false)
	backend.SetPresent("user-1", KindMicrophone, false)

	if revoked.Load() != 1 || ended.Load() != 1 {
		t.Errorf("got revoked=%d ended=%d, want 1/1", revoked.Load(), ended.Load())
	}

	dispose()
	dispose()
	backend.SetPermission("user-1", KindMicrophone, false)
	if revoked.Load() != 1 {
		t.Error("disposed subscriber should not receive events")
	}

	guard.Release(h)
	if got := h.Subscribe(func(Event) {}); got == nil {
		t.Error("Subscribe on a released handle should return a no-op disposer")
	}
}

type backendFunc func(ctx context.Context, owner string, kind Kind) (Track, error)

func (f backendFunc) Open(ctx context.Context, owner string, kind Kind) (Track, error) {
	return f(ctx, owner, kind)
}
