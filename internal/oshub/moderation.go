package oshub

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/opensupplyhub/contribute/internal/domain"
)

const moderationPath = "/api/v1/moderation-events/"

// ModerationQuery filters and pages the moderation queue.
type ModerationQuery struct {
	Status    domain.ModerationStatus
	Country   string
	Source    domain.Source
	SortBy    string
	OrderDesc bool
	From      int
	Size      int
}

// Values encodes the query for the backend.
func (q ModerationQuery) Values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("moderation_status", string(q.Status))
	}
	if q.Country != "" {
		v.Set("country", q.Country)
	}
	if q.Source != "" {
		v.Set("source", string(q.Source))
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
		if q.OrderDesc {
			v.Set("order_by", "desc")
		} else {
			v.Set("order_by", "asc")
		}
	}
	if q.From > 0 {
		v.Set("from", strconv.Itoa(q.From))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// ModerationPage is a page of moderation events.
type ModerationPage struct {
	Count int                      `json:"count"`
	Data  []domain.ModerationEvent `json:"data"`
}

// CreatedLocation is returned when a moderation event is promoted to a location.
type CreatedLocation struct {
	OSID         domain.OSID `json:"os_id"`
	ModerationID string      `json:"moderation_id"`
}

type rejectBody struct {
	Status domain.ModerationStatus `json:"moderation_status"`
	Reason string                  `json:"action_reason_text_cleaned"`
	Raw    string                  `json:"action_reason_text_raw"`
}

// GetModerationEvent fetches one moderation event.
func (c *Client) GetModerationEvent(ctx context.Context, moderationID string) (*domain.ModerationEvent, error) {
	var event domain.ModerationEvent
	if err := c.get(ctx, moderationPath+escapePath(moderationID)+"/", nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListModerationEvents fetches a page of the moderation queue.
func (c *Client) ListModerationEvents(ctx context.Context, q ModerationQuery) (*ModerationPage, error) {
	var page ModerationPage
	if err := c.get(ctx, moderationPath, q.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RejectModerationEvent rejects a contribution. plain is the justification with markup removed;
// raw is what the moderator typed.
func (c *Client) RejectModerationEvent(ctx context.Context, moderationID, plain, raw string) (*domain.ModerationEvent, error) {
	var event domain.ModerationEvent
	body := rejectBody{Status: domain.ModerationRejected, Reason: plain, Raw: raw}
	if err := c.send(ctx, http.MethodPatch, moderationPath+escapePath(moderationID)+"/", body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateLocationFromEvent promotes the event's contribution to a new production location.
func (c *Client) CreateLocationFromEvent(ctx context.Context, moderationID string) (*CreatedLocation, error) {
	var out CreatedLocation
	path := moderationPath + escapePath(moderationID) + "/production-locations/"
	if err := c.send(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPotentialMatch merges the event's contribution into the existing location osID.
func (c *Client) ConfirmPotentialMatch(ctx context.Context, moderationID, osID string) (*CreatedLocation, error) {
	var out CreatedLocation
	path := moderationPath + escapePath(moderationID) + "/production-locations/" + escapePath(osID) + "/"
	if err := c.send(ctx, http.MethodPatch, path, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
