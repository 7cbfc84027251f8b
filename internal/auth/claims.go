package auth

import (
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// Kind distinguishes the two token families.
type Kind string

const (
	// KindSession authenticates API calls for one gateway session.
	KindSession Kind = "session"
	// KindStaff is an operator-issued grant exchanged for a staff session.
	KindStaff Kind = "staff"
)

// Claims represents the claims stored in a PASETO token.
// v4.local tokens are encrypted, so clients cannot read them.
type Claims struct {
	Kind          Kind        `json:"kind"`
	SessionID     string      `json:"session_id,omitempty"`
	Role          domain.Role `json:"role"`
	ContributorID int         `json:"contributor_id,omitempty"`
	Name          string      `json:"name,omitempty"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsStaff reports whether the claims grant dashboard access.
func (c *Claims) IsStaff() bool {
	return c.Role == domain.RoleStaff
}
