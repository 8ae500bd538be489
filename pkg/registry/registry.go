// Package registry tracks which probes currently have a flash session running.
//
// It is the only state shared between the discovery path and the flash
// workers. Everything else travels as events.
package registry

import (
	"sort"
	"sync"
	"time"
)

// Registry is a set of probe serial numbers with an active flash session.
// It is safe for concurrent use; the zero value is not, use New.
type Registry struct {
	mu     sync.RWMutex
	active map[string]time.Time
	now    func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		active: make(map[string]time.Time),
		now:    time.Now,
	}
}

// TryAcquire claims sn for a new session. It returns false when sn is already
// claimed; exactly one of any number of concurrent callers wins.
func (r *Registry) TryAcquire(sn string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[sn]; busy {
		return false
	}
	r.active[sn] = r.now()
	return true
}

// Release drops the claim on sn. Releasing an unclaimed serial is a no-op.
func (r *Registry) Release(sn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sn)
}

// Contains reports whether sn has an active session.
func (r *Registry) Contains(sn string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[sn]
	return ok
}

// IsEmpty reports whether no session is active.
func (r *Registry) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active) == 0
}

// StartedAt returns when sn was acquired.
func (r *Registry) StartedAt(sn string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.active[sn]
	return t, ok
}

// Active returns the claimed serials in sorted order.
func (r *Registry) Active() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.active))
	for sn := range r.active {
		out = append(out, sn)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}
