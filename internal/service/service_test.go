package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/auth"
	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/oshub"
	"github.com/opensupplyhub/contribute/internal/ratelimit"
	"github.com/opensupplyhub/contribute/internal/search"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/store"
	"github.com/opensupplyhub/contribute/internal/store/sqlite"
)

const (
	testModerationID = "2f1d9c0e-6b7a-4c55-9d3e-0a1b2c3d4e5f"
	testOSID         = "BD2024123ABCDEF"
)

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires every service against temporary stores and a fake backend.
type testEnv struct {
	mux    *http.ServeMux
	events *recorder
	tokens *auth.TokenService
	store  *store.Store
	cache  *sqlite.Store
	index  *search.Index
	flags  *features.Source

	sessions     *SessionService
	searchSvc    *SearchService
	contribution *ContributionService
	tracker      *TrackerService
	moderation   *ModerationService
	filters      *FilterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBurst(t, 10)
}

func newTestEnvWithBurst(t *testing.T, burst int) *testEnv {
	t.Helper()
	log := logger.Discard().Logger
	dir := t.TempDir()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	upstream := oshub.New(config.UpstreamConfig{
		BaseURL:         server.URL,
		Timeout:         5 * time.Second,
		BreakerFailures: 50,
		BreakerCooldown: time.Minute,
	}, log)

	st, err := store.New(filepath.Join(dir, "badger"), time.Hour, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cache, err := sqlite.Open(filepath.Join(dir, "cache.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	index, err := search.Open(search.Options{DataPath: dir, Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	key, err := auth.LoadOrGenerateKey(filepath.Join(dir, "token.key"))
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour, time.Hour)
	require.NoError(t, err)

	flags, err := features.New(config.FeaturesConfig{}, log)
	require.NoError(t, err)

	limiter := ratelimit.New(1, burst, 0)
	t.Cleanup(limiter.Stop)

	events := &recorder{}
	sessions := NewSessionService(st, tokens, events, log, time.Hour)
	t.Cleanup(func() { _ = sessions.Shutdown() })

	return &testEnv{
		mux:          mux,
		events:       events,
		tokens:       tokens,
		store:        st,
		cache:        cache,
		index:        index,
		flags:        flags,
		sessions:     sessions,
		searchSvc:    NewSearchService(sessions, upstream, log, 10),
		contribution: NewContributionService(sessions, upstream, cache, flags, limiter, events, log),
		tracker:      NewTrackerService(sessions, upstream, cache, events, log),
		moderation:   NewModerationService(sessions, upstream, index, cache, events, log, 10),
		filters:      NewFilterService(sessions, upstream, log, time.Hour),
	}
}

// contributor starts a contributor session.
func (e *testEnv) contributor(t *testing.T) *Workflow {
	t.Helper()
	wf, _, err := e.sessions.Create(t.Context(), "")
	require.NoError(t, err)
	return wf
}

// staff starts a staff session.
func (e *testEnv) staff(t *testing.T) *Workflow {
	t.Helper()
	grant, err := e.tokens.IssueStaffToken(7, "Moderator")
	require.NoError(t, err)
	wf, _, err := e.sessions.Create(t.Context(), grant)
	require.NoError(t, err)
	return wf
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
