package api

import (
	"context"
	"net/http"

	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/sse"
)

// SessionInput is embedded by the inputs of session-scoped operations.
type SessionInput struct {
	SessionToken string `header:"X-Session-Token" doc:"Session token returned by POST /api/v1/sessions"`
}

// RequireSession resolves the workflow of a session token.
// Returns 401 when the token is missing, invalid or expired.
func (s *Server) RequireSession(ctx context.Context, in SessionInput) (*service.Workflow, error) {
	return s.services.Session.Resume(ctx, in.SessionToken)
}

// RequireStaff resolves a staff session. Returns 403 for contributor sessions.
func (s *Server) RequireStaff(ctx context.Context, in SessionInput) (*service.Workflow, error) {
	return s.services.Session.ResumeStaff(ctx, in.SessionToken)
}

// StreamAuthenticator adapts session tokens to the SSE handler. EventSource cannot set
// headers, so the token may also arrive as the token query parameter.
func StreamAuthenticator(sessions *service.SessionService) sse.Authenticate {
	return func(r *http.Request) (string, bool, error) {
		token := r.Header.Get(SessionTokenHeader)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		claims, err := sessions.Authenticate(token)
		if err != nil {
			return "", false, err
		}
		return claims.SessionID, claims.IsStaff(), nil
	}
}
