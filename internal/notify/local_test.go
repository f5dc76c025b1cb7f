package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/rs/zerolog"
)

func TestLocal_FiresAtInstant(t *testing.T) {
	fired := make(chan Delivery, 1)
	sink := NewLocal(func(d Delivery) { fired <- d }, nil, zerolog.Nop())
	defer sink.Stop()

	d := Delivery{ID: "n1", Kind: deadline.KindReminder, FireAt: time.Now().Add(10 * time.Millisecond)}
	if err := sink.Arm(context.Background(), d); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	select {
	case got := <-fired:
		if got.ID != "n1" {
			t.Errorf("fired %s, want n1", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not fire")
	}

	if sink.Pending() != 0 {
		t.Errorf("expected no pending deliveries, got %d", sink.Pending())
	}
}

func TestLocal_Cancel(t *testing.T) {
	fired := make(chan Delivery, 1)
	sink := NewLocal(func(d Delivery) { fired <- d }, nil, zerolog.Nop())
	defer sink.Stop()

	_ = sink.Arm(context.Background(), Delivery{ID: "n1", FireAt: time.Now().Add(50 * time.Millisecond)})

	if !sink.Cancel("n1") {
		t.Fatal("expected Cancel to disarm n1")
	}
	if sink.Cancel("n1") {
		t.Error("second Cancel should report nothing armed")
	}

	select {
	case d := <-fired:
		t.Fatalf("cancelled delivery fired: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocal_RearmReplaces(t *testing.T) {
	fired := make(chan Delivery, 2)
	sink := NewLocal(func(d Delivery) { fired <- d }, nil, zerolog.Nop())
	defer sink.Stop()

	_ = sink.Arm(context.Background(), Delivery{ID: "n1", Body: "old", FireAt: time.Now().Add(time.Hour)})
	_ = sink.Arm(context.Background(), Delivery{ID: "n1", Body: "new", FireAt: time.Now()})

	select {
	case d := <-fired:
		if d.Body != "new" {
			t.Errorf("expected replacement delivery, got %q", d.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not fire")
	}
	if sink.Pending() != 0 {
		t.Errorf("old timer should be gone, pending=%d", sink.Pending())
	}
}

func TestLocal_StopRejectsArm(t *testing.T) {
	sink := NewLocal(func(Delivery) {}, nil, zerolog.Nop())
	sink.Stop()

	err := sink.Arm(context.Background(), Delivery{ID: "n1", FireAt: time.Now()})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
