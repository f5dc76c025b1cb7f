package session

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Factory builds the orchestrator for a user
type Factory func(userID string) *Orchestrator

// Registry holds one orchestrator per user, created on first use
type Registry struct {
	factory Factory

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
}

// NewRegistry creates an empty registry
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:       factory,
		orchestrators: make(map[string]*Orchestrator),
	}
}

// Get returns the user's orchestrator, creating it if needed
func (r *Registry) Get(userID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orchestrators[userID]
	if !ok {
		o = r.factory(userID)
		r.orchestrators[userID] = o
	}
	return o
}

// Lookup returns the user's orchestrator without creating one
func (r *Registry) Lookup(userID string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orchestrators[userID]
	return o, ok
}

// FindSession returns the orchestrator currently holding sessionID
func (r *Registry) FindSession(sessionID string) (*Orchestrator, bool) {
	for _, o := range r.snapshot() {
		if sess, ok := o.Current(); ok && sess.ID == sessionID {
			return o, true
		}
	}
	return nil, false
}

// Users returns the ids of all known users, sorted
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.orchestrators))
	for id := range r.orchestrators {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// EndAll ends every in-flight session concurrently
func (r *Registry) EndAll(ctx context.Context, reason EndReason) error {
	var g errgroup.Group
	for _, o := range r.snapshot() {
		g.Go(func() error {
			return o.EndWithReason(ctx, reason)
		})
	}
	return g.Wait()
}

func (r *Registry) snapshot() []*Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*Orchestrator, 0, len(r.orchestrators))
	for _, o := range r.orchestrators {
		list = append(list, o)
	}
	return list
}
