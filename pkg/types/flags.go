package types

import "strings"

// VarFlags describes the properties of a UPS variable.
// String and Number are mutually exclusive.
type VarFlags uint8

// Variable flag bits
const (
	FlagNone      VarFlags = 0x00
	FlagRW        VarFlags = 0x01 // Variable may be written with SET VAR
	FlagString    VarFlags = 0x02 // Value is free text
	FlagNumber    VarFlags = 0x04 // Value is numeric
	FlagImmutable VarFlags = 0x08 // Flags may not change after creation
)

// IsRW returns true if the variable is writable
func (f VarFlags) IsRW() bool {
	return f&FlagRW != 0
}

// IsString returns true if the variable holds text
func (f VarFlags) IsString() bool {
	return f&FlagString != 0
}

// IsNumber returns true if the variable holds a number
func (f VarFlags) IsNumber() bool {
	return f&FlagNumber != 0
}

// IsImmutable returns true if the flags are locked
func (f VarFlags) IsImmutable() bool {
	return f&FlagImmutable != 0
}

// Valid reports whether the combination is allowed
func (f VarFlags) Valid() bool {
	return !(f.IsString() && f.IsNumber())
}

// WithRW returns a copy of flags with the RW bit set or cleared
func (f VarFlags) WithRW(rw bool) VarFlags {
	if rw {
		return f | FlagRW
	}
	return f &^ FlagRW
}

// String returns the flag names joined by '|'
func (f VarFlags) String() string {
	if f == FlagNone {
		return "NONE"
	}
	var parts []string
	if f.IsRW() {
		parts = append(parts, "RW")
	}
	if f.IsString() {
		parts = append(parts, "STRING")
	}
	if f.IsNumber() {
		parts = append(parts, "NUMBER")
	}
	if f.IsImmutable() {
		parts = append(parts, "IMMUTABLE")
	}
	return strings.Join(parts, "|")
}

// ParseVarFlags parses flag names such as "RW", "STRING" or "NUMBER".
// Unknown names are returned as an error.
func ParseVarFlags(names []string) (VarFlags, error) {
	var f VarFlags
	for _, n := range names {
		switch strings.ToUpper(strings.TrimSpace(n)) {
		case "RW":
			f |= FlagRW
		case "STRING":
			f |= FlagString
		case "NUMBER":
			f |= FlagNumber
		case "IMMUTABLE":
			f |= FlagImmutable
		case "", "NONE":
		default:
			return f, &FlagError{Name: n}
		}
	}
	if !f.Valid() {
		return f, ErrConflictingFlags
	}
	return f, nil
}

// FlagError reports an unknown flag name
type FlagError struct {
	Name string
}

func (e *FlagError) Error() string {
	return "unknown variable flag " + e.Name
}
