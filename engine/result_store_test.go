package engine

import (
	"errors"
	"testing"
)

// TestResultStore_Value verifies the value path
func TestResultStore_Value(t *testing.T) {
	var s ResultStore[int]

	if s.IsSet() {
		t.Error("IsSet() = true on empty store, want false")
	}

	s.SetValue(42)

	if !s.IsSet() {
		t.Error("IsSet() = false after SetValue, want true")
	}
	v, err := s.Get()
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if v != 42 {
		t.Errorf("Get() = %d, want 42", v)
	}
}

// TestResultStore_Error verifies the failure path
func TestResultStore_Error(t *testing.T) {
	var s ResultStore[string]
	boom := errors.New("boom")

	s.SetError(boom)

	v, err := s.Get()
	if !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want %v", err, boom)
	}
	if v != "" {
		t.Errorf("Get() value = %q, want zero value", v)
	}
}

// TestResultStore_Unit verifies the no-value specialization
func TestResultStore_Unit(t *testing.T) {
	var s ResultStore[Unit]
	s.SetValue(Unit{})
	if _, err := s.Get(); err != nil {
		t.Errorf("Get() error = %v, want nil", err)
	}
}

// TestResultStore_DoubleSetPanics verifies the slot never overwrites
// Given: A store holding a value
// When: A second result is stored
// Then: The store panics instead of silently replacing the result
func TestResultStore_DoubleSetPanics(t *testing.T) {
	var s ResultStore[int]
	s.SetValue(1)

	defer func() {
		if recover() == nil {
			t.Error("second SetValue did not panic")
		}
	}()
	s.SetValue(2)
}

// TestResultStore_SetErrorAfterValuePanics verifies cross-kind double set
func TestResultStore_SetErrorAfterValuePanics(t *testing.T) {
	var s ResultStore[int]
	s.SetValue(1)

	defer func() {
		if recover() == nil {
			t.Error("SetError after SetValue did not panic")
		}
	}()
	s.SetError(errors.New("late"))
}

// TestResultStore_GetBeforeSetPanics verifies get-before-set fails fast
func TestResultStore_GetBeforeSetPanics(t *testing.T) {
	var s ResultStore[int]

	defer func() {
		if recover() == nil {
			t.Error("Get on empty store did not panic")
		}
	}()
	s.Get()
}

// TestResultStore_NilErrorPanics verifies SetError rejects nil
func TestResultStore_NilErrorPanics(t *testing.T) {
	var s ResultStore[int]

	defer func() {
		if recover() == nil {
			t.Error("SetError(nil) did not panic")
		}
	}()
	s.SetError(nil)
}
