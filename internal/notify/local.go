package notify

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/wellcore/internal/clock"
	"github.com/rs/zerolog"
)

// Local arms in-process timers. When a timer expires the delivery is
// passed to the fire callback.
type Local struct {
	fire   func(Delivery)
	clock  clock.Clock
	logger zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewLocal creates a timer sink. clk may be nil.
func NewLocal(fire func(Delivery), clk clock.Clock, logger zerolog.Logger) *Local {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Local{
		fire:   fire,
		clock:  clk,
		logger: logger.With().Str("component", "local-sink").Logger(),
		timers: make(map[string]*time.Timer),
	}
}

// Arm schedules d for d.FireAt, replacing any delivery armed with the same id.
// Instants in the past fire immediately.
func (l *Local) Arm(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wait := d.FireAt.Sub(l.clock.Now())
	if wait < 0 {
		wait = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if existing, ok := l.timers[d.ID]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		l.mu.Lock()
		if l.timers[d.ID] != timer {
			l.mu.Unlock()
			return
		}
		delete(l.timers, d.ID)
		l.mu.Unlock()

		l.fire(d)
	})
	l.timers[d.ID] = timer

	l.logger.Debug().
		Str("notification_id", d.ID).
		Time("fire_at", d.FireAt).
		Dur("wait", wait).
		Msg("Delivery armed")

	return nil
}

// Cancel disarms the delivery with the given id
func (l *Local) Cancel(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	timer, ok := l.timers[id]
	if !ok {
		return false
	}
	delete(l.timers, id)
	return timer.Stop()
}

// Pending returns the number of armed deliveries
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Stop disarms everything. Later Arm calls fail with ErrClosed.
func (l *Local) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, timer := range l.timers {
		timer.Stop()
		delete(l.timers, id)
	}
	l.closed = true
}
