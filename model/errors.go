package model

import "errors"

// Error taxonomy shared by the simulation kernel. Packages wrap these with
// context via fmt.Errorf("...: %w", ...) so callers can match with errors.Is.
var (
	// ErrInvalidConfiguration indicates a component could not be constructed
	// or registered with the supplied parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnknownEntity indicates an operation referenced a component or
	// spacecraft that was never registered.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrStaleReference indicates a lookup resolved an id whose owner has
	// already been removed from the arena.
	ErrStaleReference = errors.New("stale reference")
	// ErrDegenerateGeometry indicates a per-step computation hit a singular
	// configuration (e.g. a zero-norm position vector).
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)
