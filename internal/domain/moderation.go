package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModerationStatus is the review state of a contribution.
type ModerationStatus string

// Moderation statuses.
const (
	ModerationPending  ModerationStatus = "PENDING"
	ModerationApproved ModerationStatus = "APPROVED"
	ModerationRejected ModerationStatus = "REJECTED"
)

// Decided reports whether a moderator has ruled on the event.
func (s ModerationStatus) Decided() bool {
	return s == ModerationApproved || s == ModerationRejected
}

// Valid reports whether s is a known status.
func (s ModerationStatus) Valid() bool {
	return s == ModerationPending || s.Decided()
}

// RequestType distinguishes new contributions from updates of an existing location.
type RequestType string

// Request types.
const (
	RequestCreate RequestType = "CREATE"
	RequestUpdate RequestType = "UPDATE"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestCreate || t == RequestUpdate
}

// Source is the channel a contribution arrived through.
type Source string

// Contribution sources.
const (
	SourceSLC Source = "SLC" // single location contribution form
	SourceAPI Source = "API"
)

// ContributionData is the production-location shaped payload a contributor submitted.
type ContributionData struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	CountryCode string `json:"country"`
	ExtendedFields
}

// ModerationEvent is one pending or decided contribution.
type ModerationEvent struct {
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DecisionDate     *time.Time       `json:"moderation_decision_date"`
	ClaimID          *int             `json:"claim_id"`
	ModerationID     uuid.UUID        `json:"moderation_id"`
	OSID             OSID             `json:"os_id,omitempty"`
	ContributorID    int              `json:"contributor_id"`
	ContributorName  string           `json:"contributor_name"`
	RequestType      RequestType      `json:"request_type"`
	Source           Source           `json:"source"`
	Status           ModerationStatus `json:"moderation_status"`
	CleanedData      ContributionData `json:"cleaned_data"`
	PotentialMatches []PotentialMatch `json:"potential_matches,omitempty"`
}

// Validate checks the status invariants: the decision date is set exactly when the event is decided.
func (e *ModerationEvent) Validate() error {
	if !e.Status.Valid() {
		return fmt.Errorf("unknown moderation status %q", e.Status)
	}
	if !e.RequestType.Valid() {
		return fmt.Errorf("unknown request type %q", e.RequestType)
	}
	if e.Status.Decided() && e.DecisionDate == nil {
		return fmt.Errorf("moderation %s is %s without a decision date", e.ModerationID, e.Status)
	}
	if !e.Status.Decided() && e.DecisionDate != nil {
		return fmt.Errorf("moderation %s is pending but has a decision date", e.ModerationID)
	}
	return nil
}

// Decide records a moderator decision at the given time.
func (e *ModerationEvent) Decide(status ModerationStatus, at time.Time) error {
	if !status.Decided() {
		return fmt.Errorf("cannot decide moderation with status %q", status)
	}
	if e.Status.Decided() {
		return fmt.Errorf("moderation %s already %s", e.ModerationID, e.Status)
	}
	e.Status = status
	e.DecisionDate = &at
	e.UpdatedAt = at
	return nil
}
