package hub

import "sync"

// Registry is the process-wide table of tenants, keyed by normalized
// namespace id. It is the lifecycle authority for Tenant aggregates: the
// connect path creates them, the disconnect cleanup removes them once
// empty. The registry lock only guards the top-level map; tenant state is
// guarded by each tenant's own lock.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tenants: make(map[string]*Tenant),
	}
}

// Add creates an empty tenant for the id if absent and returns the stored
// tenant. Calling Add twice with the same id yields the same tenant.
func (r *Registry) Add(id string) *Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tenants[id]; ok {
		return t
	}
	t := NewTenant(id)
	r.tenants[id] = t
	return t
}

// Get looks a tenant up without creating it.
func (r *Registry) Get(id string) (*Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	return t, ok
}

// RemoveIfEmpty deletes the tenant entry, but only if the tenant is still
// empty at the moment of removal. The emptiness decision made during
// disconnect cleanup goes stale if a concurrent registration lands on the
// same namespace before the entry is deleted; re-checking here under both
// the registry lock and the tenant lock closes that window. Reports
// whether the entry was deleted.
func (r *Registry) RemoveIfEmpty(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[id]
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.users) != 0 || len(t.groups) != 0 {
		return false
	}
	delete(r.tenants, id)
	return true
}

// Len returns the number of registered tenants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Tenants returns a snapshot of all registered tenants.
func (r *Registry) Tenants() []*Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out
}
