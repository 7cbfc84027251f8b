// Package search keeps a local full-text index of moderation events so staff can filter
// and sort the review queue by text without a backend round trip.
package search

import (
	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/normalize"
)

// Document is one moderation event as stored in the Bleve index.
//
// Sort keys are folded copies of the display fields so "Ça Va" sorts next to "ca va".
type Document struct {
	ID          string `json:"id"` // moderation id
	OSID        string `json:"os_id,omitempty"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	Contributor string `json:"contributor"`
	Source      string `json:"source"`
	Status      string `json:"status"`
	RequestType string `json:"request_type"`

	NameSort        string `json:"name_sort"`
	ContributorSort string `json:"contributor_sort"`

	// Unix millis
	CreatedAt    int64 `json:"created_at"`
	UpdatedAt    int64 `json:"updated_at"`
	DecisionDate int64 `json:"decision_date,omitempty"`
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":               d.ID,
		"name":             d.Name,
		"address":          d.Address,
		"country":          d.Country,
		"contributor":      d.Contributor,
		"source":           d.Source,
		"status":           d.Status,
		"request_type":     d.RequestType,
		"name_sort":        d.NameSort,
		"contributor_sort": d.ContributorSort,
		"created_at":       d.CreatedAt,
		"updated_at":       d.UpdatedAt,
	}
	if d.OSID != "" {
		m["os_id"] = d.OSID
	}
	if d.DecisionDate > 0 {
		m["decision_date"] = d.DecisionDate
	}
	return m
}

// FromEvent converts a moderation event to its index document.
func FromEvent(ev *domain.ModerationEvent) *Document {
	doc := &Document{
		ID:              ev.ModerationID.String(),
		OSID:            string(ev.OSID),
		Name:            ev.CleanedData.Name,
		Address:         ev.CleanedData.Address,
		Country:         normalize.CountryCode(ev.CleanedData.CountryCode),
		Contributor:     ev.ContributorName,
		Source:          string(ev.Source),
		Status:          string(ev.Status),
		RequestType:     string(ev.RequestType),
		NameSort:        normalize.FoldKey(ev.CleanedData.Name),
		ContributorSort: normalize.FoldKey(ev.ContributorName),
		CreatedAt:       ev.CreatedAt.UnixMilli(),
		UpdatedAt:       ev.UpdatedAt.UnixMilli(),
	}
	if ev.DecisionDate != nil {
		doc.DecisionDate = ev.DecisionDate.UnixMilli()
	}
	return doc
}
