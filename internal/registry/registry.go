// Package registry assigns terminal identifiers and tracks live
// sessions.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"termserve/internal/monitoring"
	"termserve/internal/terminal"
)

// Registry owns identity generation and bookkeeping of live terminal
// sessions. Identifiers are issued from a monotonic counter starting
// at 1 and are never reused.
type Registry struct {
	next     atomic.Uint64
	sessions sync.Map // map[terminal.ID]*terminal.Context
	metrics  *monitoring.Metrics
}

// Info is the public representation of a live session.
type Info struct {
	ID          string `json:"id"`
	Open        bool   `json:"open"`
	User        string `json:"user,omitempty"`
	Environment string `json:"environment"`
}

// New creates a registry. Metrics may be nil.
func New(metrics *monitoring.Metrics) *Registry {
	return &Registry{metrics: metrics}
}

// Allocate issues a fresh terminal identifier, invokes build with it,
// and registers the resulting context keyed by that identifier. A
// build failure burns the identifier and registers nothing.
func (r *Registry) Allocate(build func(terminal.ID) (*terminal.Context, error)) (*terminal.Context, error) {
	id := terminal.ID(r.next.Add(1))

	tc, err := build(id)
	if err != nil {
		return nil, fmt.Errorf("allocate terminal %s: %w", id, err)
	}

	r.sessions.Store(id, tc)
	r.metrics.SessionStarted()
	return tc, nil
}

// Release removes a session from the registry. Releasing an unknown
// identifier is a no-op.
func (r *Registry) Release(id terminal.ID) {
	if _, loaded := r.sessions.LoadAndDelete(id); loaded {
		r.metrics.SessionClosed()
	}
}

// Get retrieves a live session.
func (r *Registry) Get(id terminal.ID) (*terminal.Context, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*terminal.Context), true
}

// List returns a snapshot of all registered sessions.
func (r *Registry) List() []Info {
	infos := []Info{}
	r.sessions.Range(func(_, value any) bool {
		tc := value.(*terminal.Context)

		info := Info{
			ID:          tc.ID().String(),
			Open:        tc.IsOpen(),
			Environment: tc.String(),
		}
		if u, ok := tc.Env().User(); ok {
			info.User = u.String()
		}
		infos = append(infos, info)
		return true
	})
	return infos
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
