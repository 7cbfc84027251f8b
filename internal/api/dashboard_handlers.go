package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

func (s *Server) registerDashboardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listModerationEvents",
		Method:      http.MethodGet,
		Path:        "/api/v1/dashboard/moderation-events",
		Summary:     "List moderation queue",
		Description: "Returns a page of the moderation queue in the session's sort order. q searches the local index.",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleListModerationEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "sortModerationEvents",
		Method:      http.MethodPost,
		Path:        "/api/v1/dashboard/moderation-events/sort",
		Summary:     "Sort moderation queue",
		Description: "Sorts by a column, toggling the direction when it is already the sort column",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSortModerationEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "getModerationEvent",
		Method:      http.MethodGet,
		Path:        "/api/v1/dashboard/moderation-events/{moderationID}",
		Summary:     "Get moderation event",
		Description: "Returns a moderation event with its potential matches and available actions",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetModerationEvent)

	huma.Register(s.api, huma.Operation{
		OperationID: "rejectModerationEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/dashboard/moderation-events/{moderationID}/reject",
		Summary:     "Reject contribution",
		Description: "Rejects a pending contribution with a justification of at least 30 characters",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleRejectModerationEvent)

	huma.Register(s.api, huma.Operation{
		OperationID: "createLocationFromEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/dashboard/moderation-events/{moderationID}/production-locations",
		Summary:     "Create production location",
		Description: "Approves a pending contribution as a new production location",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleCreateLocationFromEvent)

	huma.Register(s.api, huma.Operation{
		OperationID: "confirmPotentialMatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/dashboard/moderation-events/{moderationID}/production-locations/{osID}",
		Summary:     "Confirm potential match",
		Description: "Approves a pending contribution as an update of an existing production location",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleConfirmPotentialMatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "getClaimTarget",
		Method:      http.MethodGet,
		Path:        "/api/v1/dashboard/moderation-events/{moderationID}/claim",
		Summary:     "Get claim target",
		Description: "Returns the claim route of an approved contribution's production location",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetClaimTarget)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexModerationEvents",
		Method:      http.MethodPost,
		Path:        "/api/v1/dashboard/reindex",
		Summary:     "Rebuild the queue index",
		Description: "Rebuilds the local moderation index from the backend queue",
		Tags:        []string{"Dashboard"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleReindex)
}

// === DTOs ===

// QueueParams are the queue filters shared by list and sort.
type QueueParams struct {
	Query    string `query:"q" maxLength:"200" doc:"Text search over name, address, contributor and country"`
	Status   string `query:"status" enum:"PENDING,APPROVED,REJECTED" doc:"Moderation status"`
	Country  string `query:"country" doc:"ISO country code"`
	Source   string `query:"source" enum:"SLC,API" doc:"Contribution source"`
	Page     int    `query:"page" minimum:"0" doc:"1-based page"`
	PageSize int    `query:"page_size" minimum:"0" maximum:"100" doc:"Events per page"`
}

func (p QueueParams) query() service.QueueQuery {
	return service.QueueQuery{
		Query:    p.Query,
		Status:   domain.ModerationStatus(p.Status),
		Country:  p.Country,
		Source:   domain.Source(p.Source),
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// ListModerationEventsInput contains parameters for listing the queue.
type ListModerationEventsInput struct {
	SessionInput
	QueueParams
}

// QueueOutput wraps the queue view for Huma.
type QueueOutput struct {
	Body service.QueueView
}

// SortRequest is the request body for sorting the queue.
type SortRequest struct {
	Column workflow.SortColumn `json:"column" doc:"Column to sort by"`
}

// SortModerationEventsInput wraps the sort request for Huma.
type SortModerationEventsInput struct {
	SessionInput
	QueueParams
	Body SortRequest
}

// ModerationEventInput contains parameters for a single moderation event.
type ModerationEventInput struct {
	SessionInput
	ModerationID string `path:"moderationID" doc:"Moderation event ID"`
}

// RecordOutput wraps the record view for Huma.
type RecordOutput struct {
	Body service.RecordView
}

// RejectRequest is the request body for rejecting a contribution.
type RejectRequest struct {
	Justification string `json:"justification" maxLength:"10000" doc:"Reason for the rejection, rich text allowed"`
}

// RejectInput wraps the reject request for Huma.
type RejectInput struct {
	SessionInput
	ModerationID string `path:"moderationID" doc:"Moderation event ID"`
	Body         RejectRequest
}

// ConfirmMatchInput contains parameters for confirming a potential match.
type ConfirmMatchInput struct {
	SessionInput
	ModerationID string `path:"moderationID" doc:"Moderation event ID"`
	OSID         string `path:"osID" doc:"OS ID of the matching production location"`
}

// ClaimTargetOutput wraps the claim target for Huma.
type ClaimTargetOutput struct {
	Body *state.ClaimTarget
}

// ReindexInput contains parameters for rebuilding the index.
type ReindexInput struct {
	SessionInput
}

// ReindexResponse reports a rebuilt index.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Moderation events indexed"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleListModerationEvents(ctx context.Context, input *ListModerationEventsInput) (*QueueOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.Queue(ctx, wf, input.query())
	if err != nil {
		return nil, err
	}
	return &QueueOutput{Body: view}, nil
}

func (s *Server) handleSortModerationEvents(ctx context.Context, input *SortModerationEventsInput) (*QueueOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.SetSort(ctx, wf, input.Body.Column, input.query())
	if err != nil {
		return nil, err
	}
	return &QueueOutput{Body: view}, nil
}

func (s *Server) handleGetModerationEvent(ctx context.Context, input *ModerationEventInput) (*RecordOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.Record(ctx, wf, input.ModerationID)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: view}, nil
}

func (s *Server) handleRejectModerationEvent(ctx context.Context, input *RejectInput) (*RecordOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.Reject(ctx, wf, input.ModerationID, input.Body.Justification)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: view}, nil
}

func (s *Server) handleCreateLocationFromEvent(ctx context.Context, input *ModerationEventInput) (*RecordOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.CreateLocation(ctx, wf, input.ModerationID)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: view}, nil
}

func (s *Server) handleConfirmPotentialMatch(ctx context.Context, input *ConfirmMatchInput) (*RecordOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Moderation.ConfirmMatch(ctx, wf, input.ModerationID, input.OSID)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: view}, nil
}

func (s *Server) handleGetClaimTarget(ctx context.Context, input *ModerationEventInput) (*ClaimTargetOutput, error) {
	wf, err := s.RequireStaff(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	target, err := s.services.Moderation.ClaimTarget(ctx, wf, input.ModerationID)
	if err != nil {
		return nil, err
	}
	return &ClaimTargetOutput{Body: target}, nil
}

func (s *Server) handleReindex(ctx context.Context, input *ReindexInput) (*ReindexOutput, error) {
	if _, err := s.RequireStaff(ctx, input.SessionInput); err != nil {
		return nil, err
	}
	n, err := s.services.Moderation.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("moderation index rebuilt on request", "events", n)
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}
