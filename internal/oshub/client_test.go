package oshub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(config.UpstreamConfig{
		BaseURL:         server.URL,
		Token:           "secret",
		Timeout:         5 * time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, logger.Discard().Logger)
}

func TestClient_GetLocation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/production-locations/US2021250D1DTN7/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"os_id": "US2021250D1DTN7",
			"name": "Eco Apparel",
			"address": "1 Main St",
			"country": {"alpha_2": "US", "alpha_3": "USA", "numeric": "840", "name": "United States"},
			"historical_os_id": ["US2021250D1DTN7", "US2019000AAAAA1"],
			"claim_status": "unclaimed",
			"sector": ["Apparel"]
		}`)
	})

	loc, err := client.GetLocation(context.Background(), "US2021250D1DTN7")
	require.NoError(t, err)

	assert.Equal(t, domain.OSID("US2021250D1DTN7"), loc.OSID)
	assert.Equal(t, "United States", loc.Country.Name)
	assert.Equal(t, []domain.OSID{"US2019000AAAAA1"}, loc.HistoricalOSIDs, "current id removed from history")
	assert.Equal(t, domain.ClaimStatusUnclaimed, loc.ClaimStatus)
	assert.Equal(t, []string{"Apparel"}, loc.Sector)
}

func TestClient_SearchLocations_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Test Name", q.Get("name"))
		assert.Equal(t, "Test Address", q.Get("address"))
		assert.Equal(t, "US", q.Get("country"))
		assert.Equal(t, "10", q.Get("size"))
		io.WriteString(w, `{"count": 1, "data": [{"os_id": "US2021250D1DTN7", "name": "n", "address": "a", "country": {"alpha_2": "US", "name": "United States"}, "confidence": 0.9}]}`)
	})

	page, err := client.SearchLocations(context.Background(), LocationQuery{Name: "Test Name", Address: "Test Address", Country: "US", Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.NotNil(t, page.Data[0].Confidence)
	assert.InDelta(t, 0.9, *page.Data[0].Confidence, 1e-9)
}

func TestClient_CreateLocation_Body(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/production-locations/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Eco Apparel", body["name"])
		assert.Equal(t, "US", body["country"])
		assert.Equal(t, map[string]any{"min": float64(10), "max": float64(20)}, body["number_of_workers"])

		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"moderation_id": "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11", "moderation_status": "PENDING", "created_at": "2024-10-17T11:30:20Z", "cleaned_data": {"name": "Eco Apparel"}}`)
	})

	sub, err := client.CreateLocation(context.Background(), domain.ContributionData{
		Name:           "Eco Apparel",
		Address:        "1 Main St",
		CountryCode:    "US",
		ExtendedFields: domain.ExtendedFields{NumberOfWorkers: &domain.NumberOfWorkers{Min: 10, Max: 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11", sub.ModerationID)
	assert.Equal(t, domain.ModerationPending, sub.Status)
}

func TestClient_UpdateLocation_UsesPatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/production-locations/US2021250D1DTN7/", r.URL.Path)
		io.WriteString(w, `{"moderation_id": "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11", "moderation_status": "PENDING"}`)
	})

	sub, err := client.UpdateLocation(context.Background(), "us2021250d1dtn7", domain.ContributionData{Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, domain.OSID("US2021250D1DTN7"), sub.OSID)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   domainerrors.Code
		wantFields map[string]string
	}{
		{
			name:       "field errors",
			status:     http.StatusBadRequest,
			body:       `{"detail": "The request body is invalid.", "errors": [{"field": "name", "detail": "This field may not be blank."}, {"field": "non_field_errors", "detail": "Duplicate."}]}`,
			wantCode:   domainerrors.CodeUpstreamField,
			wantFields: map[string]string{"name": "This field may not be blank."},
		},
		{
			name:     "non field error",
			status:   http.StatusBadRequest,
			body:     `{"detail": "Contributor is banned."}`,
			wantCode: domainerrors.CodeUpstream,
		},
		{
			name:     "unstructured 4xx",
			status:   http.StatusConflict,
			body:     `conflict`,
			wantCode: domainerrors.CodeUpstream,
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"detail": "The location with the given id was not found."}`,
			wantCode: domainerrors.CodeNotFound,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `boom`,
			wantCode: domainerrors.CodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.GetLocation(context.Background(), "US2021250D1DTN7")
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.wantCode, domainErr.Code)
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, domainErr.FieldErrors())
			}
		})
	}
}

func TestClient_UpstreamDetailIsKept(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail": "Contributor is banned.", "errors": [{"field": "", "detail": "Contact support."}]}`)
	})

	_, err := client.CreateLocation(context.Background(), domain.ContributionData{Name: "n"})

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, []string{"Contributor is banned.", "Contact support."}, domainErr.Details)
}

func TestClient_MixedRejectionKeepsNonFieldErrors(t *testing.T) {
	body := `{"detail": "The request body is invalid.", "errors": [{"field": "name", "detail": "Too long."}, {"field": "non_field_errors", "detail": "Duplicate contribution detected."}]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, body)
	})

	_, err := client.CreateLocation(context.Background(), domain.ContributionData{Name: "n"})

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeUpstreamField, domainErr.Code)
	assert.Equal(t, "The request body is invalid.", domainErr.Message)

	rejection, ok := domainErr.Details.(*domainerrors.Rejection)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"name": "Too long."}, rejection.Fields)
	assert.Equal(t, []string{"Duplicate contribution detected."}, rejection.NonField)
	assert.Equal(t, []string{body}, rejection.Raw)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for range 2 {
		_, err := client.GetLocation(context.Background(), "US2021250D1DTN7")
		assert.True(t, domainerrors.Is(err, domainerrors.ErrUnavailable))
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.GetLocation(context.Background(), "US2021250D1DTN7")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnavailable))
	assert.Equal(t, 2, calls, "open breaker short-circuits without calling upstream")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for range 5 {
		_, _ = client.GetLocation(context.Background(), "US2021250D1DTN7")
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestClient_ModerationEndpoints(t *testing.T) {
	const id = "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11"
	var seen []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/moderation-events/"+id+"/":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "REJECTED", body["moderation_status"])
			assert.Equal(t, "plain reason", body["action_reason_text_cleaned"])
			io.WriteString(w, `{"moderation_id": "`+id+`", "moderation_status": "REJECTED", "moderation_decision_date": "2024-10-18T00:00:00Z", "request_type": "CREATE"}`)
		case r.URL.Path == "/api/v1/moderation-events/"+id+"/production-locations/":
			io.WriteString(w, `{"os_id": "US2024000NEWID1"}`)
		case r.URL.Path == "/api/v1/moderation-events/"+id+"/production-locations/US2021250D1DTN7/":
			io.WriteString(w, `{"os_id": "US2021250D1DTN7"}`)
		case r.URL.Path == "/api/v1/moderation-events/":
			assert.Equal(t, "PENDING", r.URL.Query().Get("moderation_status"))
			assert.Equal(t, "desc", r.URL.Query().Get("order_by"))
			io.WriteString(w, `{"count": 0, "data": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()

	event, err := client.RejectModerationEvent(ctx, id, "plain reason", "<p>plain reason</p>")
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationRejected, event.Status)
	assert.NoError(t, event.Validate())

	created, err := client.CreateLocationFromEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.OSID("US2024000NEWID1"), created.OSID)

	merged, err := client.ConfirmPotentialMatch(ctx, id, "US2021250D1DTN7")
	require.NoError(t, err)
	assert.Equal(t, domain.OSID("US2021250D1DTN7"), merged.OSID)

	_, err = client.ListModerationEvents(ctx, ModerationQuery{Status: domain.ModerationPending, SortBy: "created_at", OrderDesc: true})
	require.NoError(t, err)

	assert.Len(t, seen, 4)
}

func TestClient_FilterOptions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/countries/":
			io.WriteString(w, `[["US", "United States"], ["BD", "Bangladesh"]]`)
		case "/api/sectors/":
			io.WriteString(w, `["Apparel", "Footwear"]`)
		case "/api/facility-processing-types/":
			io.WriteString(w, `[{"facilityType": "Final Product Assembly", "processingTypes": ["Sewing", "Cutting"]}, {"facilityType": "Textile", "processingTypes": ["Sewing", "Dyeing"]}]`)
		}
	})
	ctx := context.Background()

	countries, err := client.FilterOptions(ctx, domain.FilterCountries)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterOption{Value: "US", Label: "United States"}, countries[0])

	sectors, err := client.FilterOptions(ctx, domain.FilterSectors)
	require.NoError(t, err)
	assert.Len(t, sectors, 2)

	types, err := client.FilterOptions(ctx, domain.FilterProcessingTypes)
	require.NoError(t, err)
	assert.Equal(t, []domain.FilterOption{
		{Value: "Sewing", Label: "Sewing"},
		{Value: "Cutting", Label: "Cutting"},
		{Value: "Dyeing", Label: "Dyeing"},
	}, types)

	_, err = client.FilterOptions(ctx, "colours")
	assert.Error(t, err)
}
