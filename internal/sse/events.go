// Package sse pushes moderation and session state updates to connected clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
)

// EventType represents the type of an SSE event.
type EventType string

const (
	// EventModerationSubmitted is sent when a contribution is accepted by the backend.
	// Delivered to the submitting session and to staff.
	EventModerationSubmitted EventType = "moderation.submitted"
	// EventModerationStatusChanged is sent when a moderation event changes status, os id or claim status.
	EventModerationStatusChanged EventType = "moderation.status_changed"
	// EventStateChanged is sent to a session after each action applied to its state.
	EventStateChanged EventType = "state.changed"
	// EventHeartbeat keeps idle connections alive.
	EventHeartbeat EventType = "heartbeat"
)

// Event is an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// SessionID limits delivery to one session (plus staff when StaffToo is set).
	// Empty means broadcast.
	SessionID string `json:"-"`
	StaffToo  bool   `json:"-"`
	StaffOnly bool   `json:"-"`
}

// ModerationEventData is the payload of moderation events.
type ModerationEventData struct {
	ModerationID string                  `json:"moderation_id"`
	Status       domain.ModerationStatus `json:"moderation_status"`
	OSID         domain.OSID             `json:"os_id,omitempty"`
	ClaimStatus  domain.ClaimStatus      `json:"claim_status,omitempty"`
	RequestType  domain.RequestType      `json:"request_type,omitempty"`
	Name         string                  `json:"name,omitempty"`
}

// StateChangedEventData is the payload of state.changed events.
type StateChangedEventData struct {
	Action string `json:"action"`
	Key    string `json:"key,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewSubmittedEvent announces a new submission to its session and to staff.
func NewSubmittedEvent(sub *domain.Submission) Event {
	return Event{
		Type:      EventModerationSubmitted,
		Timestamp: time.Now(),
		SessionID: sub.SessionID,
		StaffToo:  true,
		Data: ModerationEventData{
			ModerationID: sub.ModerationID,
			Status:       sub.Status,
			OSID:         sub.OSID,
			ClaimStatus:  sub.ClaimStatus,
			RequestType:  sub.RequestType,
			Name:         sub.CleanedData.Name,
		},
	}
}

// NewStatusChangedEvent reports a status change to the submitting session and to staff.
func NewStatusChangedEvent(sessionID string, ev *domain.ModerationEvent, claim domain.ClaimStatus) Event {
	return Event{
		Type:      EventModerationStatusChanged,
		Timestamp: time.Now(),
		SessionID: sessionID,
		StaffToo:  true,
		Data: ModerationEventData{
			ModerationID: ev.ModerationID.String(),
			Status:       ev.Status,
			OSID:         ev.OSID,
			ClaimStatus:  claim,
			RequestType:  ev.RequestType,
			Name:         ev.CleanedData.Name,
		},
	}
}

// NewStaffStatusChangedEvent reports a moderator decision to staff only.
func NewStaffStatusChangedEvent(ev *domain.ModerationEvent) Event {
	e := NewStatusChangedEvent("", ev, "")
	e.StaffOnly = true
	e.StaffToo = false
	return e
}

// NewStateChangedEvent tells a session its state moved.
func NewStateChangedEvent(sessionID, action, key string) Event {
	return Event{
		Type:      EventStateChanged,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      StateChangedEventData{Action: action, Key: key},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      HeartbeatEventData{ServerTime: time.Now()},
	}
}
