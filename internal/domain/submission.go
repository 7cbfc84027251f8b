package domain

import "time"

// Submission is the locally cached copy of a contribution, kept until the backend
// has indexed the moderation event so the confirmation dialog survives a reload.
type Submission struct {
	ModerationID  string           `json:"moderation_id"`
	SessionID     string           `json:"session_id,omitempty"`
	RequestType   RequestType      `json:"request_type"`
	OSID          OSID             `json:"os_id,omitempty"`
	Status        ModerationStatus `json:"moderation_status"`
	ClaimStatus   ClaimStatus      `json:"claim_status,omitempty"`
	CleanedData   ContributionData `json:"cleaned_data"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	LastCheckedAt *time.Time       `json:"last_checked_at,omitempty"`
}

// Settled reports whether the backend has decided the submission.
func (s *Submission) Settled() bool {
	return s.Status.Decided()
}
