// Package state holds a workflow session's application state: four isolated slices,
// each mutated only by its own actions through the pure Reduce function.
package state

import (
	"time"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
)

// Failure is the serializable form of an error stored in a slice.
type Failure struct {
	Code    domainerrors.Code `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Errors  []string          `json:"errors,omitempty"`
	Detail  []string          `json:"detail,omitempty"`
}

// FailureFrom converts an error into a Failure. Field errors and raw backend detail are kept.
func FailureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	f := &Failure{Code: domainerrors.CodeInternal, Message: err.Error()}

	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		f.Code = domainErr.Code
		f.Message = domainErr.Message
		f.Fields = domainErr.FieldErrors()
		switch d := domainErr.Details.(type) {
		case []string:
			f.Detail = d
		case *domainerrors.Rejection:
			f.Errors = d.NonField
			f.Detail = d.Raw
		}
	}
	return f
}

// Async tracks one asynchronous call: start sets Fetching, success sets Data, failure sets Error.
type Async[T any] struct {
	Fetching bool     `json:"fetching"`
	Data     T        `json:"data"`
	Error    *Failure `json:"error,omitempty"`
}

func (a Async[T]) start() Async[T] {
	a.Fetching = true
	a.Error = nil
	return a
}

func (a Async[T]) succeed(data T) Async[T] {
	return Async[T]{Data: data}
}

// fail keeps the previous data so a failed refresh does not blank the view.
func (a Async[T]) fail(f *Failure) Async[T] {
	a.Fetching = false
	a.Error = f
	return a
}

// QueueSort is the active column and direction of the moderation queue.
type QueueSort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// QueuePage is one page of the moderation queue.
type QueuePage struct {
	Count  int                      `json:"count"`
	Events []domain.ModerationEvent `json:"events"`
}

// MutationResult is the outcome of a staff action on a moderation event.
type MutationResult struct {
	ModerationID string                  `json:"moderation_id"`
	Action       string                  `json:"action"`
	Status       domain.ModerationStatus `json:"status,omitempty"`
	OSID         domain.OSID             `json:"os_id,omitempty"`
	Reason       string                  `json:"reason,omitempty"` // rejection justification as Markdown
}

// ClaimTarget is where the claim action leads for one location.
type ClaimTarget struct {
	OSID        domain.OSID        `json:"os_id"`
	ClaimStatus domain.ClaimStatus `json:"claim_status"`
	Path        string             `json:"path"`
}

// ContributeProductionLocation is the contributor's search and submission slice.
type ContributeProductionLocation struct {
	SingleProductionLocation Async[*domain.ProductionLocation] `json:"single_production_location"`
	ProductionLocations      Async[[]domain.Candidate]         `json:"production_locations"`
	PendingModerationEvent   Async[*domain.ModerationEvent]    `json:"pending_moderation_event"`
	SingleModerationEvent    Async[*domain.ModerationEvent]    `json:"single_moderation_event"`
}

// DashboardContributionRecord is the staff review slice.
type DashboardContributionRecord struct {
	Queue            Async[QueuePage]               `json:"queue"`
	Sort             QueueSort                      `json:"sort"`
	Event            Async[*domain.ModerationEvent] `json:"event"`
	PotentialMatches Async[[]domain.PotentialMatch] `json:"potential_matches"`
	Mutation         Async[*MutationResult]         `json:"mutation"`
}

// ClaimFacility is the claim-flow slice.
type ClaimFacility struct {
	Target Async[*ClaimTarget] `json:"target"`
}

// FilterOptions caches the select-input option lists per kind.
type FilterOptions struct {
	Lists     map[domain.FilterKind]Async[[]domain.FilterOption] `json:"lists"`
	FetchedAt map[domain.FilterKind]time.Time                    `json:"fetched_at"`
}

// Fresh reports whether the list for kind was fetched within ttl and holds data.
func (f FilterOptions) Fresh(kind domain.FilterKind, now time.Time, ttl time.Duration) bool {
	at, ok := f.FetchedAt[kind]
	if !ok {
		return false
	}
	list := f.Lists[kind]
	return list.Error == nil && len(list.Data) > 0 && now.Sub(at) < ttl
}

// State is the whole application state of one workflow session.
type State struct {
	ContributeProductionLocation ContributeProductionLocation `json:"contribute_production_location"`
	DashboardContributionRecord  DashboardContributionRecord  `json:"dashboard_contribution_record"`
	ClaimFacility                ClaimFacility                `json:"claim_facility"`
	FilterOptions                FilterOptions                `json:"filter_options"`
}

// DefaultQueueSort orders the queue newest first.
var DefaultQueueSort = QueueSort{Column: "created_at", Desc: true}

// Initial returns the empty state of a new session.
func Initial() State {
	return State{
		DashboardContributionRecord: DashboardContributionRecord{Sort: DefaultQueueSort},
		FilterOptions: FilterOptions{
			Lists:     map[domain.FilterKind]Async[[]domain.FilterOption]{},
			FetchedAt: map[domain.FilterKind]time.Time{},
		},
	}
}
