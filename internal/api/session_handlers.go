package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/state"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Description:   "Starts a workflow session. A staff grant in X-Staff-Token starts a dashboard session.",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.rateLimitByIP(s.sessionLimiter)},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/current",
		Summary:     "Get session",
		Description: "Returns the session and its application state",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "endSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/current",
		Summary:       "End session",
		Description:   "Deletes the session and its persisted state",
		Tags:          []string{"Sessions"},
		Security:      []map[string][]string{{"session": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleEndSession)
}

// CreateSessionInput contains parameters for creating a session.
type CreateSessionInput struct {
	StaffToken string `header:"X-Staff-Token" doc:"Staff grant issued by contributectl staff-token"`
}

// CreateSessionResponse contains a new session and its token.
type CreateSessionResponse struct {
	Token   string          `json:"token" doc:"Session token, sent back in X-Session-Token"`
	Session *domain.Session `json:"session" doc:"The session"`
}

// CreateSessionOutput wraps the create session response for Huma.
type CreateSessionOutput struct {
	Body CreateSessionResponse
}

// GetSessionInput contains parameters for reading the session.
type GetSessionInput struct {
	SessionInput
}

// SessionResponse contains a session and its application state.
type SessionResponse struct {
	Session *domain.Session `json:"session" doc:"The session"`
	State   state.State     `json:"state" doc:"Application state"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         SessionResponse
}

// EndSessionInput contains parameters for ending the session.
type EndSessionInput struct {
	SessionInput
}

func (s *Server) handleCreateSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
	wf, token, err := s.services.Session.Create(ctx, input.StaffToken)
	if err != nil {
		return nil, err
	}
	return &CreateSessionOutput{Body: CreateSessionResponse{Token: token, Session: wf.Session()}}, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *GetSessionInput) (*SessionOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{
		CacheControl: CacheNoStore,
		Body:         SessionResponse{Session: wf.Session(), State: wf.State()},
	}, nil
}

func (s *Server) handleEndSession(ctx context.Context, input *EndSessionInput) (*struct{}, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	if err := s.services.Session.End(ctx, wf); err != nil {
		return nil, err
	}
	return nil, nil
}
