package domain

import "time"

// Role is the permission level carried by a gateway session.
type Role string

const (
	// RoleContributor may search and submit contributions.
	RoleContributor Role = "contributor"
	// RoleStaff may additionally review the moderation queue.
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleContributor || r == RoleStaff
}

// Session is one browser's workflow session. Its application state is stored separately,
// keyed by ID, so a reload restores the forms where the contributor left them.
type Session struct {
	CreatedAt     time.Time `json:"created_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	ContributorID int       `json:"contributor_id,omitempty"`
}

// NewSession creates a session for the given role.
func NewSession(id string, role Role, contributorID int) *Session {
	now := time.Now()
	return &Session{
		ID:            id,
		Role:          role,
		ContributorID: contributorID,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
}

// IsStale reports whether the session has been idle longer than ttl.
// A zero ttl never expires.
func (s *Session) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastSeenAt) > ttl
}

// IsStaff reports whether the session may use the dashboard.
func (s *Session) IsStaff() bool {
	return s.Role == RoleStaff
}
