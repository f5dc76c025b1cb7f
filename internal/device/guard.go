package device

import (
	"context"
	"errors"
	"sync"

	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Backend opens capture tracks for an owner.
type Backend interface {
	Open(ctx context.Context, owner string, kind Kind) (Track, error)
}

// Guard acquires and releases capture devices for a single owner.
type Guard struct {
	backend Backend
	owner   string
	logger  zerolog.Logger
}

// NewGuard creates a guard for owner backed by backend.
func NewGuard(backend Backend, owner string, logger zerolog.Logger) *Guard {
	return &Guard{
		backend: backend,
		owner:   owner,
		logger:  logger.With().Str("component", "device-guard").Str("user_id", owner).Logger(),
	}
}

// Acquire opens the camera and the microphone. If either fails, any track
// already opened is stopped before the error is returned. Unavailability is
// reported as *Error; a cancelled ctx is returned as the context error.
func (g *Guard) Acquire(ctx context.Context) (*Handle, error) {
	h := &Handle{
		id:   uuid.NewString(),
		subs: make(map[int]func(Event)),
	}

	for _, kind := range []Kind{KindCamera, KindMicrophone} {
		track, err := g.backend.Open(ctx, g.owner, kind)
		if err != nil {
			for _, opened := range h.tracks {
				opened.Stop()
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			devErr := classify(kind, err)
			metrics.DeviceAcquireFailures.WithLabelValues(string(devErr.Reason)).Inc()
			g.logger.Warn().
				Err(err).
				Str("device", string(kind)).
				Str("reason", string(devErr.Reason)).
				Msg("Capture device unavailable")
			return nil, devErr
		}
		if src, ok := track.(eventSource); ok {
			src.OnEvent(h.emit)
		}
		h.tracks = append(h.tracks, track)
	}

	metrics.DeviceHandlesActive.Inc()
	g.logger.Debug().Str("handle_id", h.id).Msg("Capture devices acquired")

	return h, nil
}

// Release stops every track of h and drops its subscriptions. It is safe to
// call with nil or with an already released handle; it returns true only
// for the call that actually released.
func (g *Guard) Release(h *Handle) bool {
	if h == nil {
		return false
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return false
	}
	h.released = true
	tracks := h.tracks
	h.subs = make(map[int]func(Event))
	h.mu.Unlock()

	for _, track := range tracks {
		track.Stop()
	}

	metrics.DeviceHandlesActive.Dec()
	g.logger.Debug().Str("handle_id", h.id).Msg("Capture devices released")

	return true
}

func classify(kind Kind, err error) *Error {
	var devErr *Error
	if errors.As(err, &devErr) {
		if devErr.Device == "" {
			devErr.Device = kind
		}
		return devErr
	}
	return &Error{Reason: ReasonUnsupported, Device: kind, Err: err}
}

// Handle owns the tracks opened by one Acquire call.
type Handle struct {
	id     string
	tracks []Track

	mu       sync.Mutex
	released bool
	subs     map[int]func(Event)
	nextSub  int
}

// ID returns the handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Subscribe registers fn for device events on this handle. The returned
// disposer removes the subscription and may be called more than once.
func (h *Handle) Subscribe(fn func(Event)) (dispose func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *Handle) emit(ev Event) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
