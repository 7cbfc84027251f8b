package oshub

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
)

const locationsPath = "/api/v1/production-locations/"

// LocationQuery is a potential-match search by name, address and country.
type LocationQuery struct {
	Name    string
	Address string
	Country string
	Size    int
}

// Values encodes the query for the backend.
func (q LocationQuery) Values() url.Values {
	v := url.Values{}
	v.Set("name", q.Name)
	v.Set("address", q.Address)
	v.Set("country", q.Country)
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// LocationPage is a page of search results.
type LocationPage struct {
	Count int                `json:"count"`
	Data  []domain.Candidate `json:"data"`
}

// Submission is the backend's answer to a create or update contribution.
type Submission struct {
	ModerationID string                  `json:"moderation_id"`
	Status       domain.ModerationStatus `json:"moderation_status"`
	CreatedAt    time.Time               `json:"created_at"`
	CleanedData  domain.ContributionData `json:"cleaned_data"`
	OSID         domain.OSID             `json:"os_id,omitempty"`
}

// GetLocation fetches one production location by its current or historical OS ID.
// The backend resolves historical ids to the current record.
func (c *Client) GetLocation(ctx context.Context, osID string) (*domain.ProductionLocation, error) {
	var loc domain.ProductionLocation
	if err := c.get(ctx, locationsPath+escapePath(osID)+"/", nil, &loc); err != nil {
		return nil, err
	}
	loc.Normalize()
	return &loc, nil
}

// SearchLocations runs a name/address/country potential-match search.
func (c *Client) SearchLocations(ctx context.Context, q LocationQuery) (*LocationPage, error) {
	var page LocationPage
	if err := c.get(ctx, locationsPath, q.Values(), &page); err != nil {
		return nil, err
	}
	for i := range page.Data {
		page.Data[i].Normalize()
	}
	return &page, nil
}

// CreateLocation submits a brand-new production location for moderation.
func (c *Client) CreateLocation(ctx context.Context, data domain.ContributionData) (*Submission, error) {
	var sub Submission
	if err := c.send(ctx, http.MethodPost, locationsPath, data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateLocation submits changes to an existing production location for moderation.
func (c *Client) UpdateLocation(ctx context.Context, osID string, data domain.ContributionData) (*Submission, error) {
	var sub Submission
	path := locationsPath + escapePath(strings.ToUpper(osID)) + "/"
	if err := c.send(ctx, http.MethodPatch, path, data, &sub); err != nil {
		return nil, err
	}
	if sub.OSID == "" {
		sub.OSID = domain.OSID(strings.ToUpper(osID))
	}
	return &sub, nil
}
