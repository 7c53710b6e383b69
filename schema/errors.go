package schema

import "errors"

var (
	// ErrFetchFailed indicates a boundary fetch failed remotely.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrTargetNotFound indicates a deep-link target is absent from the loaded log.
	ErrTargetNotFound = errors.New("link target not found")
	// ErrMalformedEntry indicates an entry is missing a required ordering field.
	ErrMalformedEntry = errors.New("malformed entry")
	// ErrInvalidStream indicates an invalid stream identifier.
	ErrInvalidStream = errors.New("invalid stream")
	// ErrStreamNotFound indicates a stream has no stored collection.
	ErrStreamNotFound = errors.New("stream not found")
	// ErrInvalidDirection indicates an unknown pagination direction.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")
)
