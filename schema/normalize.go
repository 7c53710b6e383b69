package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeStreamID validates and normalizes a stream identifier.
// Allowed characters: letters, digits, '.', '_', '-', ':'.
func NormalizeStreamID(value string) (StreamID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrInvalidStream
	}
	for _, r := range trimmed {
		if r == '.' || r == '_' || r == '-' || r == ':' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return "", ErrInvalidStream
	}
	return StreamID(trimmed), nil
}

// NormalizeDirection parses a pagination direction.
func NormalizeDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DirectionOlder):
		return DirectionOlder, nil
	case string(DirectionNewer):
		return DirectionNewer, nil
	default:
		return "", ErrInvalidDirection
	}
}

// ValidateEntry reports whether an entry carries the fields needed to order it.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(string(e.ID)) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEntry)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: %s has no creation time", ErrMalformedEntry, e.ID)
	}
	return nil
}
