package profile

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps target ids to geometry profiles. Profiles are stored and
// returned by value, so a reader never observes a half-applied write.
type Registry struct {
	mu        sync.RWMutex
	profiles  map[string]GeometryProfile
	defaultID string
}

// NewRegistry creates a registry seeded with def as the fallback profile.
func NewRegistry(def GeometryProfile) (*Registry, error) {
	def = def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default profile: %w", err)
	}
	return &Registry{
		profiles:  map[string]GeometryProfile{def.ID: def},
		defaultID: def.ID,
	}, nil
}

// NewBuiltinRegistry creates a registry holding the built-in profiles.
func NewBuiltinRegistry() *Registry {
	r, err := NewRegistry(BuiltinDefault())
	if err != nil {
		panic(err) // built-in default is static
	}
	for _, p := range BuiltinProfiles() {
		_ = r.Add(p)
	}
	return r
}

// Add registers or replaces a profile. It does not persist anything.
func (r *Registry) Add(p GeometryProfile) error {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]GeometryProfile, len(r.profiles)+1)
	for id, existing := range r.profiles {
		next[id] = existing
	}
	next[p.ID] = p
	r.profiles = next
	return nil
}

// Remove drops a profile. The default profile cannot be removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.defaultID {
		return false
	}
	if _, ok := r.profiles[id]; !ok {
		return false
	}
	next := make(map[string]GeometryProfile, len(r.profiles))
	for k, v := range r.profiles {
		if k != id {
			next[k] = v
		}
	}
	r.profiles = next
	return true
}

// Replace swaps the whole catalog. The default profile is kept when set does
// not carry one.
func (r *Registry) Replace(set []GeometryProfile) error {
	next := make(map[string]GeometryProfile, len(set)+1)
	for _, p := range set {
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			return err
		}
		next[p.ID] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := next[r.defaultID]; !ok {
		next[r.defaultID] = r.profiles[r.defaultID]
	}
	r.profiles = next
	return nil
}

// ResolveProfileFor returns the profile registered for id, or the default
// profile when id is unknown. It never fails.
func (r *Registry) ResolveProfileFor(id string) GeometryProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[id]; ok {
		return p
	}
	return r.profiles[r.defaultID]
}

// Lookup returns the profile registered for id without falling back.
func (r *Registry) Lookup(id string) (GeometryProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	return p, ok
}

// DefaultID returns the id of the fallback profile.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Snapshot returns every registered profile sorted by id.
func (r *Registry) Snapshot() []GeometryProfile {
	r.mu.RLock()
	profiles := r.profiles
	r.mu.RUnlock()

	out := make([]GeometryProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
