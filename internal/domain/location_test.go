package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOSID(t *testing.T) {
	id, err := ParseOSID(" us2021250d1dtn7 ")
	require.NoError(t, err)
	assert.Equal(t, OSID("US2021250D1DTN7"), id)

	_, err = ParseOSID("US2021250D1DTN")
	assert.Error(t, err, "14 characters")

	_, err = ParseOSID("US2021250D1DT/7")
	assert.Error(t, err, "reserved character")

	assert.True(t, IsValidOSID("US2021250D1DTN7"))
	assert.False(t, IsValidOSID("us2021250d1dtn7"), "lowercase is not canonical")
	assert.Equal(t, "ABC/?", NormalizeOSIDInput("abc/?"))
}

func TestProductionLocation_Normalize(t *testing.T) {
	loc := &ProductionLocation{
		OSID:            "US2021250D1DTN7",
		HistoricalOSIDs: []OSID{"US2020000AAAAA1", "US2021250D1DTN7", "US2020000AAAAA1", "CN2019000BBBBB2"},
	}

	loc.Normalize()

	assert.Equal(t, []OSID{"US2020000AAAAA1", "CN2019000BBBBB2"}, loc.HistoricalOSIDs)
	assert.NoError(t, loc.Validate())
	assert.True(t, loc.IsHistoricalID("CN2019000BBBBB2"))
	assert.False(t, loc.IsHistoricalID("US2021250D1DTN7"), "current id is never historical")
}

func TestProductionLocation_Validate(t *testing.T) {
	loc := &ProductionLocation{
		OSID:            "US2021250D1DTN7",
		HistoricalOSIDs: []OSID{"US2021250D1DTN7"},
	}
	assert.Error(t, loc.Validate())

	loc.HistoricalOSIDs = nil
	loc.ClaimStatus = "revoked"
	assert.Error(t, loc.Validate())

	loc.ClaimStatus = ClaimStatusPending
	assert.NoError(t, loc.Validate())
}

func TestCountry_Matches(t *testing.T) {
	us := Country{Alpha2: "US", Alpha3: "USA", Numeric: "840", Name: "United States"}

	for _, code := range []string{"US", "us", "USA", "840", "united states"} {
		assert.True(t, us.Matches(code), code)
	}
	assert.False(t, us.Matches(""))
	assert.False(t, us.Matches("CA"))
	assert.True(t, Country{}.IsZero())
}

func TestExtendedFields_IsZero(t *testing.T) {
	assert.True(t, ExtendedFields{}.IsZero())
	assert.False(t, ExtendedFields{ParentCompany: "Acme"}.IsZero())
	assert.False(t, ExtendedFields{NumberOfWorkers: &NumberOfWorkers{Min: 1, Max: 1}}.IsZero())
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceBand
	}{
		{0, ConfidenceLow},
		{0.6, ConfidenceLow},
		{0.61, ConfidenceModerate},
		{0.7, ConfidenceModerate},
		{0.71, ConfidenceHigh},
		{0.85, ConfidenceHigh},
		{0.86, ConfidenceHighest},
		{1, ConfidenceHighest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%g", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, BandFor(tt.score))
			assert.Equal(t, tt.want, PotentialMatch{Confidence: tt.score}.Band())
		})
	}
}
