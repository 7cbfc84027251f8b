package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationEvent_Validate_DecisionDate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		status   ModerationStatus
		decided  *time.Time
		wantFail bool
	}{
		{name: "pending without date", status: ModerationPending},
		{name: "pending with date", status: ModerationPending, decided: &now, wantFail: true},
		{name: "approved with date", status: ModerationApproved, decided: &now},
		{name: "approved without date", status: ModerationApproved, wantFail: true},
		{name: "rejected with date", status: ModerationRejected, decided: &now},
		{name: "rejected without date", status: ModerationRejected, wantFail: true},
		{name: "unknown status", status: "LOST", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &ModerationEvent{
				ModerationID: uuid.New(),
				RequestType:  RequestCreate,
				Status:       tt.status,
				DecisionDate: tt.decided,
			}
			err := event.Validate()
			if tt.wantFail {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModerationEvent_Decide(t *testing.T) {
	event := &ModerationEvent{ModerationID: uuid.New(), RequestType: RequestUpdate, Status: ModerationPending}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, event.Decide(ModerationRejected, at))
	assert.Equal(t, ModerationRejected, event.Status)
	require.NotNil(t, event.DecisionDate)
	assert.Equal(t, at, *event.DecisionDate)
	assert.NoError(t, event.Validate())

	assert.Error(t, event.Decide(ModerationApproved, at), "decided events are immutable")
	assert.Error(t, (&ModerationEvent{Status: ModerationPending}).Decide(ModerationPending, at))
}

func TestModerationEvent_DecodesBackendPayload(t *testing.T) {
	payload := `{
		"moderation_id": "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11",
		"created_at": "2024-10-17T11:30:20.287Z",
		"updated_at": "2024-10-18T11:30:20.287Z",
		"os_id": null,
		"cleaned_data": {
			"name": "Eco Apparel",
			"address": "1 Main St",
			"country": "US",
			"sector": ["Apparel"],
			"number_of_workers": {"min": 10, "max": 20},
			"unknown_key": true
		},
		"contributor_id": 7,
		"contributor_name": "Green Brand",
		"request_type": "CREATE",
		"source": "SLC",
		"moderation_status": "PENDING",
		"moderation_decision_date": null,
		"claim_id": null
	}`

	var event ModerationEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))

	assert.Equal(t, "0b6a6a1c-64c5-4bd8-9a8c-8a0f3f0e2f11", event.ModerationID.String())
	assert.Empty(t, event.OSID)
	assert.Nil(t, event.DecisionDate)
	assert.Nil(t, event.ClaimID)
	assert.Equal(t, "US", event.CleanedData.CountryCode)
	assert.Equal(t, []string{"Apparel"}, event.CleanedData.Sector)
	require.NotNil(t, event.CleanedData.NumberOfWorkers)
	assert.Equal(t, NumberOfWorkers{Min: 10, Max: 20}, *event.CleanedData.NumberOfWorkers)
	assert.NoError(t, event.Validate())
}
