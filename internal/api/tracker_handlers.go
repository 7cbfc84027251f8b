package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

func (s *Server) registerTrackerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSubmissions",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/moderation-events",
		Summary:     "List submissions",
		Description: "Returns the contributions submitted from this session, newest first",
		Tags:        []string{"Tracker"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleListSubmissions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTrackerDialog",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/moderation-events/{moderationID}",
		Summary:     "Open the tracker dialog",
		Description: "Returns the status of a submitted contribution and its claim action",
		Tags:        []string{"Tracker"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetTrackerDialog)

	huma.Register(s.api, huma.Operation{
		OperationID:   "closeTrackerDialog",
		Method:        http.MethodDelete,
		Path:          "/api/v1/contribute/moderation-events/{moderationID}",
		Summary:       "Close the tracker dialog",
		Tags:          []string{"Tracker"},
		Security:      []map[string][]string{{"session": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleCloseTrackerDialog)

	huma.Register(s.api, huma.Operation{
		OperationID: "navigateBack",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/navigation/back",
		Summary:     "Browser back",
		Description: "While the tracker dialog is open, back closes it and navigates to the landing page",
		Tags:        []string{"Tracker"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleNavigateBack)
}

// TrackerInput contains parameters for tracker dialog operations.
type TrackerInput struct {
	SessionInput
	ModerationID string `path:"moderationID" doc:"Moderation event ID"`
}

// TrackerOutput wraps the tracker dialog for Huma.
type TrackerOutput struct {
	Body workflow.TrackerDialog
}

// ListSubmissionsInput contains parameters for listing a session's submissions.
type ListSubmissionsInput struct {
	SessionInput
}

// ListSubmissionsOutput wraps the submission list for Huma.
type ListSubmissionsOutput struct {
	Body struct {
		Submissions []service.SubmissionItem `json:"submissions"`
	}
}

// NavigateBackInput contains parameters for back navigation.
type NavigateBackInput struct {
	SessionInput
}

// NavigationOutput wraps the back navigation result for Huma.
type NavigationOutput struct {
	Body service.NavigationView
}

func (s *Server) handleGetTrackerDialog(ctx context.Context, input *TrackerInput) (*TrackerOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Tracker.Dialog(ctx, wf, input.ModerationID)
	if err != nil {
		return nil, err
	}
	return &TrackerOutput{Body: view}, nil
}

func (s *Server) handleCloseTrackerDialog(ctx context.Context, input *TrackerInput) (*struct{}, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	if err := s.services.Tracker.Close(ctx, wf); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleNavigateBack(ctx context.Context, input *NavigateBackInput) (*NavigationOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Tracker.Back(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &NavigationOutput{Body: view}, nil
}

func (s *Server) handleListSubmissions(ctx context.Context, input *ListSubmissionsInput) (*ListSubmissionsOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	items, err := s.services.Tracker.Submissions(ctx, wf)
	if err != nil {
		return nil, err
	}
	out := &ListSubmissionsOutput{}
	out.Body.Submissions = items
	return out, nil
}
