// Package id generates gateway-local identifiers and parses backend ones.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for gateway-local identifiers.
const (
	PrefixSession = "ses"
	PrefixStream  = "sse"
	PrefixRequest = "req"
)

// Generate creates a prefixed NanoID, e.g. "ses-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether s was generated with prefix.
func HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix+"-") && len(s) > len(prefix)+1
}

// ParseModerationID parses the backend's UUID moderation identifier.
// The nil UUID is rejected.
func ParseModerationID(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse moderation id %q: %w", s, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("moderation id %q is the nil uuid", s)
	}
	return u, nil
}
