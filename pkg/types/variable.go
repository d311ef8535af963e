package types

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

const (
	// MaxValueLength is the longest value a variable may hold
	MaxValueLength = 256

	// NullText is reported for descriptions that were never set
	NullText = "Unavailable"
)

// Range is an inclusive integer interval a numeric variable may take
type Range struct {
	Min int
	Max int
}

// Contains returns true if v lies inside the range
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// String returns the range as "min-max"
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Variable is one named state of a UPS. The value and flags are guarded
// by their own lock so SET traffic does not contend on the registry.
type Variable struct {
	name string

	mu           sync.RWMutex
	value        string
	flags        VarFlags
	description  string
	maxLength    int
	enumerations []string
	ranges       []Range
}

// NewVariable creates a variable with an empty value
func NewVariable(name string, flags VarFlags) (*Variable, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankName
	}
	if !flags.Valid() {
		return nil, ErrConflictingFlags
	}
	return &Variable{name: name, flags: flags}, nil
}

// Name returns the variable name
func (v *Variable) Name() string {
	return v.name
}

// Value returns the current value
func (v *Variable) Value() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// SetValue replaces the value. Values longer than MaxValueLength are rejected.
func (v *Variable) SetValue(value string) error {
	if len(value) > MaxValueLength {
		return fmt.Errorf("%w: %d > %d", ErrValueTooLong, len(value), MaxValueLength)
	}
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
	return nil
}

// Flags returns the variable flags
func (v *Variable) Flags() VarFlags {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.flags
}

// SetFlags replaces the flags
func (v *Variable) SetFlags(flags VarFlags) error {
	if !flags.Valid() {
		return ErrConflictingFlags
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.flags.IsImmutable() {
		return ErrImmutableFlags
	}
	v.flags = flags
	return nil
}

// Description returns the description, or "" if none was set
func (v *Variable) Description() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.description
}

// SetDescription sets the human-readable description
func (v *Variable) SetDescription(desc string) {
	v.mu.Lock()
	v.description = desc
	v.mu.Unlock()
}

// MaxLength returns the advertised maximum string length, 0 if unset
func (v *Variable) MaxLength() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.maxLength
}

// SetMaxLength sets the advertised maximum string length
func (v *Variable) SetMaxLength(n int) error {
	if n < 0 || n > MaxValueLength {
		return fmt.Errorf("%w: %d", ErrValueTooLong, n)
	}
	v.mu.Lock()
	v.maxLength = n
	v.mu.Unlock()
	return nil
}

// AddEnumeration appends an allowed value
func (v *Variable) AddEnumeration(value string) error {
	if len(value) > MaxValueLength {
		return ErrValueTooLong
	}
	v.mu.Lock()
	v.enumerations = append(v.enumerations, value)
	v.mu.Unlock()
	return nil
}

// Enumerations returns a copy of the allowed values
func (v *Variable) Enumerations() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.enumerations)
}

// AddRange appends an allowed interval
func (v *Variable) AddRange(r Range) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	v.mu.Lock()
	v.ranges = append(v.ranges, r)
	v.mu.Unlock()
	return nil
}

// Ranges returns a copy of the allowed intervals
func (v *Variable) Ranges() []Range {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.ranges)
}

// Clone returns a deep copy of the variable
func (v *Variable) Clone() *Variable {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return &Variable{
		name:         v.name,
		value:        v.value,
		flags:        v.flags,
		description:  v.description,
		maxLength:    v.maxLength,
		enumerations: slices.Clone(v.enumerations),
		ranges:       slices.Clone(v.ranges),
	}
}

// SameVariable reports whether a and b name the same variable.
// Name is the identity; value and description are attributes.
func SameVariable(a, b *Variable) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.name == b.name
}

// Equal compares two variables by name, value, flags and constraints.
// Descriptions only matter when both sides have one.
func Equal(a, b *Variable) bool {
	if !SameVariable(a, b) {
		return false
	}
	if a == nil {
		return true
	}
	ac, bc := a.Clone(), b.Clone()
	if ac.description != "" && bc.description != "" && ac.description != bc.description {
		return false
	}
	return ac.value == bc.value &&
		ac.flags == bc.flags &&
		slices.Equal(ac.enumerations, bc.enumerations) &&
		slices.Equal(ac.ranges, bc.ranges)
}
