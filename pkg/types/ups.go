package types

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
)

// UPS aggregates the variables, instant commands and logged-in clients of
// one named device. The name never changes after creation.
type UPS struct {
	name string

	mu          sync.RWMutex
	description string
	variables   map[string]*Variable
	commands    map[string]string
	clients     []string
}

// NewUPS creates an empty UPS. An empty description becomes NullText.
func NewUPS(name, description string) (*UPS, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankName
	}
	if description == "" {
		description = NullText
	}
	return &UPS{
		name:        name,
		description: description,
		variables:   make(map[string]*Variable),
		commands:    make(map[string]string),
	}, nil
}

// Name returns the UPS name
func (u *UPS) Name() string {
	return u.name
}

// Description returns the UPS description
func (u *UPS) Description() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.description
}

// SetDescription changes the description
func (u *UPS) SetDescription(desc string) {
	if desc == "" {
		desc = NullText
	}
	u.mu.Lock()
	u.description = desc
	u.mu.Unlock()
}

// AddVariable attaches a variable. Names must be unique within the UPS.
func (u *UPS) AddVariable(v *Variable) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.variables[v.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVariable, v.Name())
	}
	u.variables[v.Name()] = v
	return nil
}

// RemoveVariable detaches a variable and reports whether it existed
func (u *UPS) RemoveVariable(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.variables[name]; !exists {
		return false
	}
	delete(u.variables, name)
	return true
}

// Variable looks up a variable by name
func (u *UPS) Variable(name string) (*Variable, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.variables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return v, nil
}

// Variables returns every variable sorted by name
func (u *UPS) Variables() []*Variable {
	u.mu.RLock()
	vars := make([]*Variable, 0, len(u.variables))
	for _, v := range u.variables {
		vars = append(vars, v)
	}
	u.mu.RUnlock()

	sort.Slice(vars, func(i, j int) bool { return vars[i].Name() < vars[j].Name() })
	return vars
}

// Rewritables returns the variables flagged RW, sorted by name
func (u *UPS) Rewritables() []*Variable {
	var rw []*Variable
	for _, v := range u.Variables() {
		if v.Flags().IsRW() {
			rw = append(rw, v)
		}
	}
	return rw
}

// AddCommand registers an instant command and its description
func (u *UPS) AddCommand(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return ErrBlankName
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.commands[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	u.commands[name] = description
	return nil
}

// Command returns the description of an instant command
func (u *UPS) Command(name string) (string, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	desc, ok := u.commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return desc, nil
}

// Commands returns the instant command names sorted
func (u *UPS) Commands() []string {
	u.mu.RLock()
	names := make([]string, 0, len(u.commands))
	for name := range u.commands {
		names = append(names, name)
	}
	u.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Reprovision replaces the description, variables and instant commands
// with those of src. Logged-in clients are kept.
func (u *UPS) Reprovision(src *UPS) {
	if src == u {
		return
	}
	src.mu.RLock()
	description := src.description
	variables := maps.Clone(src.variables)
	commands := maps.Clone(src.commands)
	src.mu.RUnlock()

	u.mu.Lock()
	u.description = description
	u.variables = variables
	u.commands = commands
	u.mu.Unlock()
}

// Login records addr as depending on this UPS
func (u *UPS) Login(addr string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if slices.Contains(u.clients, addr) {
		return fmt.Errorf("%w: %s", ErrAlreadyLoggedIn, addr)
	}
	u.clients = append(u.clients, addr)
	return nil
}

// Logout removes addr and reports whether it was logged in
func (u *UPS) Logout(addr string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	i := slices.Index(u.clients, addr)
	if i < 0 {
		return false
	}
	u.clients = slices.Delete(u.clients, i, i+1)
	return true
}

// IsLoggedIn returns true if addr is logged in to this UPS
func (u *UPS) IsLoggedIn(addr string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return slices.Contains(u.clients, addr)
}

// Clients returns the logged-in addresses in login order
func (u *UPS) Clients() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return slices.Clone(u.clients)
}

// NumLogins returns the number of logged-in clients
func (u *UPS) NumLogins() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.clients)
}

// String returns the UPS as it appears in LIST UPS
func (u *UPS) String() string {
	return fmt.Sprintf("%s %q", u.name, u.Description())
}
