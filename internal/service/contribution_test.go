package service

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/sse"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

// fillForm opens a create form with every required field set.
func fillForm(t *testing.T, env *testEnv, wf *Workflow) {
	t.Helper()
	ctx := t.Context()
	_, err := env.contribution.Initialize(ctx, wf, InitForm{})
	require.NoError(t, err)
	for name, value := range map[string]string{
		workflow.FieldName:    "Azalea Garments",
		workflow.FieldAddress: "12 Mirpur Road, Dhaka",
		workflow.FieldCountry: "BD",
	} {
		_, err := env.contribution.SetField(ctx, wf, name, value)
		require.NoError(t, err)
	}
}

func TestContributionService_InitializeForUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("GET /api/v1/production-locations/"+testOSID+"/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, locationJSON(testOSID, "unclaimed"))
	})

	view, err := env.contribution.Initialize(ctx, wf, InitForm{OSID: testOSID})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestUpdate, view.Form.Mode)
	assert.Equal(t, domain.OSID(testOSID), view.Form.OSID)
	assert.Equal(t, "Azalea Garments", view.Form.Values.Name)
	assert.Equal(t, "BD", view.Form.Values.Country)
	assert.True(t, view.Submit.Enabled)
}

func TestContributionService_InitializeUnknownOSID(t *testing.T) {
	env := newTestEnv(t)
	wf := env.contributor(t)

	env.mux.HandleFunc("GET /api/v1/production-locations/{osID}/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	})

	_, err := env.contribution.Initialize(t.Context(), wf, InitForm{OSID: testOSID})
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestContributionService_FormRequiresInitialize(t *testing.T) {
	env := newTestEnv(t)
	wf := env.contributor(t)

	_, err := env.contribution.SetField(t.Context(), wf, workflow.FieldName, "x")
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))
}

func TestContributionService_ErrorsShowAfterBlur(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	view, err := env.contribution.Initialize(ctx, wf, InitForm{})
	require.NoError(t, err)
	assert.Empty(t, view.Errors)
	assert.False(t, view.Submit.Enabled)

	view, err = env.contribution.BlurField(ctx, wf, workflow.FieldName)
	require.NoError(t, err)
	assert.Contains(t, view.Errors, workflow.FieldName)
	assert.NotContains(t, view.Errors, workflow.FieldAddress)
}

func TestContributionService_SubmitInvalidFormDoesNotCallBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	var calls atomic.Int32
	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := env.contribution.Initialize(ctx, wf, InitForm{})
	require.NoError(t, err)
	_, err = env.contribution.Submit(ctx, wf)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Zero(t, calls.Load())

	view, err := env.contribution.Form(ctx, wf)
	require.NoError(t, err)
	assert.Contains(t, view.Errors, workflow.FieldName, "submit touches every invalid field")
}

func TestContributionService_SubmitCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, r *http.Request) {
		var body domain.ContributionData
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Azalea Garments", body.Name)
		assert.Equal(t, "BD", body.CountryCode)
		writeJSON(t, w, http.StatusAccepted, map[string]any{
			"moderation_id":     testModerationID,
			"moderation_status": "PENDING",
			"created_at":        "2024-05-01T10:00:00Z",
			"cleaned_data":      body,
		})
	})

	fillForm(t, env, wf)
	view, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)
	require.NotNil(t, view.Tracker)
	assert.Equal(t, testModerationID, view.Tracker.ModerationID)
	assert.Equal(t, domain.ModerationPending, view.Tracker.Status)
	assert.False(t, view.Tracker.Claim.Enabled)
	assert.False(t, view.Form.Submitting)

	cached, err := env.cache.GetSubmission(ctx, testModerationID)
	require.NoError(t, err)
	assert.Equal(t, wf.Session().ID, cached.SessionID)
	assert.Equal(t, domain.RequestCreate, cached.RequestType)
	assert.Equal(t, "Azalea Garments", cached.CleanedData.Name)

	submitted := env.events.ofType(sse.EventModerationSubmitted)
	require.Len(t, submitted, 1)
	assert.Equal(t, wf.Session().ID, submitted[0].SessionID)

	pending := wf.State().ContributeProductionLocation.PendingModerationEvent
	require.NotNil(t, pending.Data)
	assert.Equal(t, testModerationID, pending.Data.ModerationID.String())

	nav, err := env.tracker.Back(ctx, wf)
	require.NoError(t, err)
	assert.True(t, nav.Intercepted, "the tracker dialog opens after a submit")
}

func TestContributionService_SubmitSucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	var calls atomic.Int32
	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusAccepted, map[string]any{
			"moderation_id":     testModerationID,
			"moderation_status": "PENDING",
		})
	})

	fillForm(t, env, wf)
	view, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)
	assert.True(t, view.Form.Submitted)
	assert.False(t, view.Submit.Enabled)

	_, err = env.contribution.Submit(ctx, wf)
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())

	_, err = env.contribution.Form(ctx, wf)
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err), "the form is gone after a successful submit")
}

func TestContributionService_SubmitUpdateUsesPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("GET /api/v1/production-locations/"+testOSID+"/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, locationJSON(testOSID, "claimed"))
	})
	env.mux.HandleFunc("PATCH /api/v1/production-locations/"+testOSID+"/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"moderation_id":     testModerationID,
			"moderation_status": "PENDING",
		})
	})

	_, err := env.contribution.Initialize(ctx, wf, InitForm{OSID: testOSID})
	require.NoError(t, err)
	view, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)
	require.NotNil(t, view.Tracker)
	assert.Equal(t, domain.OSID(testOSID), view.Tracker.OSID)

	cached, err := env.cache.GetSubmission(ctx, testModerationID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestUpdate, cached.RequestType)
}

func TestContributionService_SubmitFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{
			"detail": "The request body contains invalid or missing fields.",
			"errors": []map[string]string{
				{"field": "name", "detail": "Name is too generic."},
				{"field": "coordinates", "detail": "Could not geocode."},
			},
		})
	})

	fillForm(t, env, wf)
	view, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)
	assert.Nil(t, view.Tracker)
	assert.Empty(t, view.Toast)
	assert.Equal(t, "Name is too generic.", view.Form.UpstreamErrors[workflow.FieldName])
	require.NotNil(t, view.Form.Failure)
	assert.Equal(t, []string{"coordinates: Could not geocode."}, view.Form.Failure.Errors)
	assert.Equal(t, "Azalea Garments", view.Form.Values.Name, "values survive a failure")

	view, err = env.contribution.DismissFailure(ctx, wf)
	require.NoError(t, err)
	assert.Nil(t, view.Form.Failure)
}

func TestContributionService_SubmitUnavailableIsToast(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fillForm(t, env, wf)
	view, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)
	assert.NotEmpty(t, view.Toast)
	assert.Nil(t, view.Form.Failure)
	assert.True(t, view.Submit.Enabled, "a transient failure can be retried")
}

func TestContributionService_SubmitBlockedInMaintenance(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	fillForm(t, env, wf)
	env.flags.Set(domain.FeatureFlags{DisableListUploading: true})

	view, err := env.contribution.Form(ctx, wf)
	require.NoError(t, err)
	assert.False(t, view.Submit.Enabled)
	assert.Equal(t, workflow.MaintenanceTooltip, view.Submit.Tooltip)

	_, err = env.contribution.Submit(ctx, wf)
	assert.Equal(t, domainerrors.CodeMaintenance, domainerrors.CodeOf(err))
}

func TestContributionService_SubmitRateLimited(t *testing.T) {
	env := newTestEnvWithBurst(t, 1)
	ctx := t.Context()
	wf := env.contributor(t)

	env.mux.HandleFunc("POST /api/v1/production-locations/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fillForm(t, env, wf)
	_, err := env.contribution.Submit(ctx, wf)
	require.NoError(t, err)

	_, err = env.contribution.Submit(ctx, wf)
	assert.Equal(t, domainerrors.CodeRateLimited, domainerrors.CodeOf(err))

	view, err := env.contribution.Form(ctx, wf)
	require.NoError(t, err)
	assert.False(t, view.Form.Submitting)
}

func TestContributionService_ExtendedFieldsNeedAdditionalInformation(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	wf := env.contributor(t)

	_, err := env.contribution.Initialize(ctx, wf, InitForm{})
	require.NoError(t, err)

	_, err = env.contribution.SetField(ctx, wf, workflow.FieldParentCompany, "Acme Holdings")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.contribution.SetAdditionalInformation(ctx, wf, true)
	require.NoError(t, err)
	view, err := env.contribution.SetField(ctx, wf, workflow.FieldParentCompany, "Acme Holdings")
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", view.Form.Values.ParentCompany)
}
