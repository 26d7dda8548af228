package property

import "errors"

// Domain errors for the property package.
var (
	// ErrUnknownProperty is returned when a name is not in the store.
	ErrUnknownProperty = errors.New("property: unknown")

	// ErrReadOnlyProperty is returned when a client writes a read-only property.
	ErrReadOnlyProperty = errors.New("property: read-only")

	// ErrInvalidValue is returned when a value fails parsing, bounds or choices.
	ErrInvalidValue = errors.New("property: invalid value")

	// ErrKindMismatch is returned when a typed value does not match the property kind.
	ErrKindMismatch = errors.New("property: kind mismatch")

	// ErrDuplicate is returned when defining a name twice.
	ErrDuplicate = errors.New("property: duplicate name")
)
