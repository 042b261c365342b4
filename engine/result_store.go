package engine

// Unit is the result type of tasks that produce no value.
// Promise[Unit] and ResultStore[Unit] replace a dedicated void variant.
type Unit struct{}

type resultKind int8

const (
	resultEmpty resultKind = iota
	resultValue
	resultError
)

// ResultStore is a single-slot holder for either a value or a captured
// failure. It is not thread-safe; futureState owns one exclusively and
// serializes access to it.
//
// Double-set and get-before-set are programmer errors and panic. The slot
// never silently overwrites a stored result.
type ResultStore[T any] struct {
	kind  resultKind
	value T
	err   error
}

// SetValue stores a value. Panics if a result was already stored.
func (s *ResultStore[T]) SetValue(v T) {
	if s.kind != resultEmpty {
		panic("engine: result store set twice")
	}
	s.kind = resultValue
	s.value = v
}

// SetError stores a failure. Panics if a result was already stored.
func (s *ResultStore[T]) SetError(err error) {
	if s.kind != resultEmpty {
		panic("engine: result store set twice")
	}
	if err == nil {
		panic("engine: result store SetError called with nil error")
	}
	s.kind = resultError
	s.err = err
}

// Get returns the stored value or failure.
// Calling Get before any Set is a programmer error and panics.
func (s *ResultStore[T]) Get() (T, error) {
	switch s.kind {
	case resultValue:
		return s.value, nil
	case resultError:
		var zero T
		return zero, s.err
	default:
		panic("engine: result store is not ready")
	}
}

// IsSet reports whether a value or failure has been stored.
func (s *ResultStore[T]) IsSet() bool {
	return s.kind != resultEmpty
}
