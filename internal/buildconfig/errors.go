package buildconfig

import "errors"

var (
	// ErrMalformedConfig is returned when the document cannot be parsed into the expected shape.
	ErrMalformedConfig = errors.New("malformed config")
	// ErrInvalidConfig is returned when a recognised field holds a value outside its allowed domain.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownField is returned for unrecognised keys when the reject policy is active.
	ErrUnknownField = errors.New("unknown field")
)
