package device

import (
	"context"
	"sync"
)

type leaseKey struct {
	owner string
	kind  Kind
}

// LeaseBackend is a server-side view of client capture devices. Clients
// report permission and presence changes; the backend grants at most one
// live lease per (owner, device).
type LeaseBackend struct {
	mu      sync.Mutex
	leases  map[leaseKey]*leaseTrack
	denied  map[leaseKey]bool
	missing map[leaseKey]bool
}

// NewLeaseBackend creates an empty lease table. Every device starts granted
// and present.
func NewLeaseBackend() *LeaseBackend {
	return &LeaseBackend{
		leases:  make(map[leaseKey]*leaseTrack),
		denied:  make(map[leaseKey]bool),
		missing: make(map[leaseKey]bool),
	}
}

// Open leases kind for owner.
func (b *LeaseBackend) Open(ctx context.Context, owner string, kind Kind) (Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch kind {
	case KindCamera, KindMicrophone:
	default:
		return nil, &Error{Reason: ReasonUnsupported, Device: kind}
	}

	key := leaseKey{owner: owner, kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.denied[key] {
		return nil, &Error{Reason: ReasonDenied, Device: kind}
	}
	if b.missing[key] {
		return nil, &Error{Reason: ReasonNotFound, Device: kind}
	}
	if _, busy := b.leases[key]; busy {
		return nil, &Error{Reason: ReasonInUse, Device: kind}
	}

	track := &leaseTrack{backend: b, key: key}
	b.leases[key] = track
	return track, nil
}

// SetPermission records a permission change. Revoking permission on a
// leased device notifies the lease holder.
func (b *LeaseBackend) SetPermission(owner string, kind Kind, granted bool) {
	key := leaseKey{owner: owner, kind: kind}

	b.mu.Lock()
	if granted {
		delete(b.denied, key)
	} else {
		b.denied[key] = true
	}
	track := b.leases[key]
	b.mu.Unlock()

	if !granted && track != nil {
		track.fire(Event{Type: EventPermissionRevoked, Device: kind})
	}
}

// SetPresent records a device being plugged or unplugged. Unplugging a
// leased device ends its track.
func (b *LeaseBackend) SetPresent(owner string, kind Kind, present bool) {
	key := leaseKey{owner: owner, kind: kind}

	b.mu.Lock()
	if present {
		delete(b.missing, key)
	} else {
		b.missing[key] = true
	}
	track := b.leases[key]
	b.mu.Unlock()

	if !present && track != nil {
		track.fire(Event{Type: EventTrackEnded, Device: kind})
	}
}

// Leased reports how many devices owner currently holds.
func (b *LeaseBackend) Leased(owner string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for key := range b.leases {
		if key.owner == owner {
			n++
		}
	}
	return n
}

func (b *LeaseBackend) drop(t *leaseTrack) {
	b.mu.Lock()
	if b.leases[t.key] == t {
		delete(b.leases, t.key)
	}
	b.mu.Unlock()
}

type leaseTrack struct {
	backend *LeaseBackend
	key     leaseKey

	mu      sync.Mutex
	stopped bool
	notify  func(Event)
}

func (t *leaseTrack) Kind() Kind {
	return t.key.kind
}

func (t *leaseTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.backend.drop(t)
}

func (t *leaseTrack) OnEvent(fn func(Event)) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

func (t *leaseTrack) fire(ev Event) {
	t.mu.Lock()
	fn := t.notify
	stopped := t.stopped
	t.mu.Unlock()

	if fn != nil && !stopped {
		fn(ev)
	}
}
