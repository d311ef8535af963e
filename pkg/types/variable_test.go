package types

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewVariable(t *testing.T) {
	tests := []struct {
		name    string
		varName string
		flags   VarFlags
		wantErr error
	}{
		{"valid", "battery.charge", FlagNumber, nil},
		{"blank name", "   ", FlagNone, ErrBlankName},
		{"empty name", "", FlagNone, ErrBlankName},
		{"string and number", "ups.status", FlagString | FlagNumber, ErrConflictingFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVariable(tt.varName, tt.flags)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewVariable() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && v.Name() != tt.varName {
				t.Errorf("Name() = %q, want %q", v.Name(), tt.varName)
			}
		})
	}
}

func TestVariable_SetValue(t *testing.T) {
	v, _ := NewVariable("ups.id", FlagRW|FlagString)

	if err := v.SetValue(strings.Repeat("a", MaxValueLength)); err != nil {
		t.Fatalf("SetValue(max length) error = %v", err)
	}
	if err := v.SetValue(strings.Repeat("a", MaxValueLength+1)); !errors.Is(err, ErrValueTooLong) {
		t.Errorf("SetValue(too long) error = %v, want %v", err, ErrValueTooLong)
	}
	if len(v.Value()) != MaxValueLength {
		t.Errorf("value changed after rejected SetValue: len=%d", len(v.Value()))
	}
}

func TestVariable_SetFlags(t *testing.T) {
	v, _ := NewVariable("input.voltage", FlagNumber)

	if err := v.SetFlags(FlagString | FlagNumber); !errors.Is(err, ErrConflictingFlags) {
		t.Errorf("SetFlags(conflict) error = %v, want %v", err, ErrConflictingFlags)
	}
	if err := v.SetFlags(FlagNumber | FlagImmutable); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	if err := v.SetFlags(FlagRW); !errors.Is(err, ErrImmutableFlags) {
		t.Errorf("SetFlags(after immutable) error = %v, want %v", err, ErrImmutableFlags)
	}
}

func TestVariable_Constraints(t *testing.T) {
	v, _ := NewVariable("input.transfer.low", FlagRW|FlagNumber)

	if err := v.AddRange(Range{Min: 90, Max: 100}); err != nil {
		t.Fatalf("AddRange() error = %v", err)
	}
	if err := v.AddRange(Range{Min: 110, Max: 100}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("AddRange(inverted) error = %v, want %v", err, ErrInvalidRange)
	}
	v.AddEnumeration("90")
	v.AddEnumeration("95")

	ranges := v.Ranges()
	if len(ranges) != 1 || ranges[0] != (Range{90, 100}) {
		t.Errorf("Ranges() = %v", ranges)
	}
	if !ranges[0].Contains(95) || ranges[0].Contains(101) {
		t.Errorf("Range.Contains() wrong for %v", ranges[0])
	}

	enums := v.Enumerations()
	enums[0] = "mutated"
	if v.Enumerations()[0] != "90" {
		t.Error("Enumerations() returned internal slice")
	}
}

func TestVariable_Equality(t *testing.T) {
	a, _ := NewVariable("ups.mfr", FlagString)
	b, _ := NewVariable("ups.mfr", FlagString)
	c, _ := NewVariable("ups.model", FlagString)
	a.SetValue("APC")
	b.SetValue("APC")
	a.SetDescription("Manufacturer")

	if !SameVariable(a, b) {
		t.Error("SameVariable() = false for equal names")
	}
	if SameVariable(a, c) {
		t.Error("SameVariable() = true for different names")
	}
	if !Equal(a, b) {
		t.Error("Equal() = false when only one side has a description")
	}

	b.SetDescription("Vendor")
	if Equal(a, b) {
		t.Error("Equal() = true for differing descriptions")
	}

	b.SetDescription("")
	b.SetValue("Eaton")
	if Equal(a, b) {
		t.Error("Equal() = true for differing values")
	}
	if !SameVariable(a, b) {
		t.Error("SameVariable() should ignore value")
	}
}

func TestVariable_ConcurrentAccess(t *testing.T) {
	v, _ := NewVariable("battery.charge", FlagNumber)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v.SetValue("100")
		}()
		go func() {
			defer wg.Done()
			_ = v.Value()
		}()
	}
	wg.Wait()

	if v.Value() != "100" {
		t.Errorf("Value() = %q, want 100", v.Value())
	}
}
