package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/ratelimit"
	"github.com/opensupplyhub/contribute/internal/search"
	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
)

const (
	testModerationID = "2f1d9c0e-6b7a-4c55-9d3e-0a1b2c3d4e5f"
	testOSID         = "BD2024123ABCDEF"
)

// testServer wraps the API server with a fake Open Supply Hub backend.
type testServer struct {
	*Server
	api      humatest.TestAPI
	upstream *http.ServeMux
	tokens   *auth.TokenService
	flags    *features.Source
	cache    *sqlite.Store
}

// testEnvelope decodes the response envelope.
type testEnvelope[T any] struct {
	Version int            `json:"v"`
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *EnvelopeError `json:"error"`
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithConfig(t, &config.Config{
		Limits: config.LimitsConfig{SessionPerMinute: 600},
	})
}

func setupTestServerWithConfig(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	log := logger.Discard().Logger
	dir := t.TempDir()

	mux := http.NewServeMux()
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	upstream := oshub.New(config.UpstreamConfig{
		BaseURL:         backend.URL,
		Timeout:         5 * time.Second,
		BreakerFailures: 50,
		BreakerCooldown: time.Minute,
	}, log)

	st, err := store.New(filepath.Join(dir, "sessions"), time.Hour, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache, err := sqlite.Open(filepath.Join(dir, "submissions.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	index, err := search.Open(search.Options{DataPath: filepath.Join(dir, "index"), Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	key, err := auth.LoadOrGenerateKey(filepath.Join(dir, "token.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour, time.Hour)
	require.NoError(t, err)

	flags, err := features.New(cfg.Features, log)
	require.NoError(t, err)

	limiter := ratelimit.New(10, 10, 0)
	t.Cleanup(limiter.Stop)

	sseManager := sse.NewManager(log)
	go sseManager.Start(t.Context())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sseManager.Shutdown(ctx)
	})

	sessions := service.NewSessionService(st, tokens, sseManager, log, time.Hour)
	t.Cleanup(func() { _ = sessions.Shutdown() })

	services := &Services{
		Session:      sessions,
		Search:       service.NewSearchService(sessions, upstream, log, 10),
		Contribution: service.NewContributionService(sessions, upstream, cache, flags, limiter, sseManager, log),
		Tracker:      service.NewTrackerService(sessions, upstream, cache, sseManager, log),
		Moderation:   service.NewModerationService(sessions, upstream, index, cache, sseManager, log, 10),
		Filters:      service.NewFilterService(sessions, upstream, log, time.Hour),
	}
	backends := &Backends{
		Store:    st,
		Cache:    cache,
		Index:    index,
		Upstream: upstream,
		Flags:    flags,
		SSE:      sseManager,
	}

	srv := NewServer(cfg, services, backends, sse.NewHandler(sseManager, StreamAuthenticator(sessions), log), log)
	t.Cleanup(srv.Shutdown)

	return &testServer{
		Server:   srv,
		api:      humatest.Wrap(t, srv.API()),
		upstream: mux,
		tokens:   tokens,
		flags:    flags,
		cache:    cache,
	}
}

// createSession starts a session and returns its token header.
func (ts *testServer) createSession(t *testing.T, args ...any) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/sessions", args...)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	env := decodeEnvelope[CreateSessionResponse](t, resp)
	require.NotEmpty(t, env.Data.Token)
	return SessionTokenHeader + ": " + env.Data.Token
}

// contributor starts a contributor session.
func (ts *testServer) contributor(t *testing.T) string {
	t.Helper()
	return ts.createSession(t)
}

// staff starts a dashboard session.
func (ts *testServer) staff(t *testing.T) string {
	t.Helper()
	grant, err := ts.tokens.IssueStaffToken(7, "Moderator")
	require.NoError(t, err)
	return ts.createSession(t, StaffTokenHeader+": "+grant)
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	require.Equal(t, EnvelopeVersion, env.Version)
	return env
}

// requireError asserts an error envelope with status and code.
func requireError(t *testing.T, resp *httptest.ResponseRecorder, status int, code string) *EnvelopeError {
	t.Helper()
	require.Equal(t, status, resp.Code, resp.Body.String())
	env := decodeEnvelope[json.RawMessage](t, resp)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
	return env.Error
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func locationJSON(osID, claim string) map[string]any {
	return map[string]any{
		"os_id":        osID,
		"name":         "Azalea Garments",
		"address":      "12 Mirpur Road, Dhaka",
		"country":      map[string]any{"alpha_2": "BD", "name": "Bangladesh"},
		"claim_status": claim,
	}
}

func moderationJSON(status, osID string) map[string]any {
	ev := map[string]any{
		"moderation_id":     testModerationID,
		"created_at":        "2024-05-01T10:00:00Z",
		"updated_at":        "2024-05-01T10:00:00Z",
		"contributor_id":    3,
		"contributor_name":  "Acme Brands",
		"request_type":      "CREATE",
		"source":            "SLC",
		"moderation_status": status,
		"cleaned_data": map[string]any{
			"name":    "Azalea Garments",
			"address": "12 Mirpur Road, Dhaka",
			"country": "BD",
		},
	}
	if osID != "" {
		ev["os_id"] = osID
	}
	if status != "PENDING" {
		ev["moderation_decision_date"] = "2024-05-02T10:00:00Z"
	}
	return ev
}
