package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

func handleCreateLocation(t *testing.T, ts *testServer) {
	t.Helper()
	ts.upstream.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, r *http.Request) {
		var body domain.ContributionData
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusAccepted, map[string]any{
			"moderation_id":     testModerationID,
			"moderation_status": "PENDING",
			"created_at":        "2024-05-01T10:00:00Z",
			"cleaned_data":      body,
		})
	})
	ts.upstream.HandleFunc("GET /api/v1/moderation-events/{id}/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, moderationJSON("PENDING", ""))
	})
}

func TestContributeForm_SubmitOpensTracker(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)
	handleCreateLocation(t, ts)

	resp := ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{
		"name":    "Azalea Garments",
		"address": "12 Mirpur Road, Dhaka",
		"country": "BD",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	view := decodeEnvelope[service.FormView](t, resp).Data
	require.NotNil(t, view.Form)
	assert.Equal(t, domain.RequestCreate, view.Form.Mode)
	assert.Equal(t, "Azalea Garments", view.Form.Values.Name)
	assert.True(t, view.Submit.Enabled)

	resp = ts.api.Post("/api/v1/contribute/single-location/info/submit", token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	view = decodeEnvelope[service.FormView](t, resp).Data
	require.NotNil(t, view.Tracker)
	assert.Equal(t, testModerationID, view.Tracker.ModerationID)
	assert.Equal(t, domain.ModerationPending, view.Tracker.Status)
	assert.False(t, view.Tracker.Claim.Enabled)

	cached, err := ts.cache.GetSubmission(t.Context(), testModerationID)
	require.NoError(t, err)
	assert.Equal(t, "Azalea Garments", cached.CleanedData.Name)

	resp = ts.api.Get("/api/v1/contribute/navigation/back", token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	nav := decodeEnvelope[service.NavigationView](t, resp).Data
	assert.True(t, nav.Intercepted)
	assert.Equal(t, workflow.LandingPath, nav.Path)

	resp = ts.api.Get("/api/v1/contribute/navigation/back", token)
	assert.False(t, decodeEnvelope[service.NavigationView](t, resp).Data.Intercepted)
}

func TestContributeForm_FieldErrorsAfterBlur(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)

	resp := ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Empty(t, decodeEnvelope[service.FormView](t, resp).Data.Errors)

	resp = ts.api.Post("/api/v1/contribute/single-location/info/blur", token, map[string]any{"field": workflow.FieldName})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	view := decodeEnvelope[service.FormView](t, resp).Data
	assert.Contains(t, view.Errors, workflow.FieldName)
	assert.False(t, view.Submit.Enabled)

	resp = ts.api.Put("/api/v1/contribute/single-location/info/fields", token,
		map[string]any{"field": workflow.FieldName, "value": "Azalea Garments"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotContains(t, decodeEnvelope[service.FormView](t, resp).Data.Errors, workflow.FieldName)
}

func TestContributeForm_SubmitInvalid(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)

	ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{})
	resp := ts.api.Post("/api/v1/contribute/single-location/info/submit", token)
	requireError(t, resp, http.StatusBadRequest, string(domainerrors.CodeValidation))
}

func TestContributeForm_RequiresInitialize(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)

	resp := ts.api.Get("/api/v1/contribute/single-location/info", token)
	requireError(t, resp, http.StatusConflict, string(domainerrors.CodeConflict))
}

func TestContributeForm_AdditionalInformation(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)
	ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{})

	resp := ts.api.Put("/api/v1/contribute/single-location/info/fields", token,
		map[string]any{"field": workflow.FieldParentCompany, "value": "Acme Holdings"})
	requireError(t, resp, http.StatusBadRequest, string(domainerrors.CodeValidation))

	resp = ts.api.Put("/api/v1/contribute/single-location/info/additional-information", token, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.True(t, decodeEnvelope[service.FormView](t, resp).Data.Form.Additional)

	resp = ts.api.Put("/api/v1/contribute/single-location/info/fields", token,
		map[string]any{"field": workflow.FieldParentCompany, "value": "Acme Holdings"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Acme Holdings", decodeEnvelope[service.FormView](t, resp).Data.Form.Values.ParentCompany)
}

func TestContributeForm_MaintenanceBlocksSubmit(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)
	ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{
		"name": "Azalea Garments", "address": "12 Mirpur Road, Dhaka", "country": "BD",
	})

	ts.flags.Set(domain.FeatureFlags{DisableListUploading: true})

	resp := ts.api.Post("/api/v1/contribute/single-location/info/submit", token)
	requireError(t, resp, http.StatusServiceUnavailable, string(domainerrors.CodeMaintenance))
}

func TestTrackerDialog(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.contributor(t)
	handleCreateLocation(t, ts)

	ts.api.Post("/api/v1/contribute/single-location/info", token, map[string]any{
		"name": "Azalea Garments", "address": "12 Mirpur Road, Dhaka", "country": "BD",
	})
	ts.api.Post("/api/v1/contribute/single-location/info/submit", token)

	resp := ts.api.Get("/api/v1/contribute/moderation-events/"+testModerationID, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	dialog := decodeEnvelope[workflow.TrackerDialog](t, resp).Data
	assert.Equal(t, domain.ModerationPending, dialog.Status)
	assert.Equal(t, workflow.PendingReviewTooltip, dialog.Claim.Tooltip)

	resp = ts.api.Delete("/api/v1/contribute/moderation-events/"+testModerationID, token)
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/contribute/navigation/back", token)
	assert.False(t, decodeEnvelope[service.NavigationView](t, resp).Data.Intercepted)
}
