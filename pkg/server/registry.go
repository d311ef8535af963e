package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"avaneesh/nut-go/pkg/types"
)

var (
	ErrUnknownUPS   = errors.New("unknown UPS")
	ErrDuplicateUPS = errors.New("UPS already registered")
)

// Registry holds the UPS entries served, in registration order
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*types.UPS
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*types.UPS),
	}
}

// Add registers a UPS
func (r *Registry) Add(u *types.UPS) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[u.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUPS, u.Name())
	}
	r.byName[u.Name()] = u
	r.order = append(r.order, u.Name())
	return nil
}

// Remove unregisters a UPS and reports whether it existed
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; !exists {
		return false
	}
	delete(r.byName, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// Get looks up a UPS by name
func (r *Registry) Get(name string) (*types.UPS, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUPS, name)
	}
	return u, nil
}

// List returns every UPS in registration order
func (r *Registry) List() []*types.UPS {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*types.UPS, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.byName[name])
	}
	return list
}

// Len returns the number of registered UPS entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Sync makes the registry contain exactly the given entries. Existing
// entries with a matching name are kept so their logins survive, and take
// over the new entry's description, variables and commands.
func (r *Registry) Sync(upses []*types.UPS) (added, removed []string) {
	wanted := make(map[string]*types.UPS, len(upses))
	for _, u := range upses {
		wanted[u.Name()] = u
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range slices.Clone(r.order) {
		if _, keep := wanted[name]; !keep {
			delete(r.byName, name)
			r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
			removed = append(removed, name)
		}
	}
	for _, u := range upses {
		if existing, ok := r.byName[u.Name()]; ok {
			existing.Reprovision(u)
			continue
		}
		r.byName[u.Name()] = u
		r.order = append(r.order, u.Name())
		added = append(added, u.Name())
	}
	return added, removed
}

// LogoutEverywhere removes addr from every UPS and returns the UPS names
// it was logged in to. LOGOUT carries no UPS name, hence the full scan.
func (r *Registry) LogoutEverywhere(addr string) []string {
	var names []string
	for _, u := range r.List() {
		if u.Logout(addr) {
			names = append(names, u.Name())
		}
	}
	return names
}
