package domain

import (
	"fmt"
	"strings"
)

// OSIDLength is the fixed length of an Open Supply Hub identifier.
const OSIDLength = 15

// OSID is the identifier assigned to an approved production location,
// e.g. "US2021250D1DTN7". Always uppercase alphanumeric.
type OSID string

// String implements fmt.Stringer.
func (id OSID) String() string {
	return string(id)
}

// NormalizeOSIDInput uppercases free-text search input without validating it.
// Search fields apply this on every keystroke.
func NormalizeOSIDInput(raw string) string {
	return strings.ToUpper(raw)
}

// ParseOSID uppercases raw and checks it has the OS ID shape.
func ParseOSID(raw string) (OSID, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) != OSIDLength {
		return "", fmt.Errorf("os id must be %d characters, got %d", OSIDLength, len(s))
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("os id contains invalid character %q", r)
		}
	}
	return OSID(s), nil
}

// IsValidOSID reports whether raw is already a well-formed OS ID (uppercase, alphanumeric, 15 long).
func IsValidOSID(raw string) bool {
	id, err := ParseOSID(raw)
	return err == nil && string(id) == raw
}
