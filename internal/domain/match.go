package domain

// ConfidenceBand buckets a similarity score for display.
type ConfidenceBand string

// Confidence bands from weakest to strongest.
const (
	ConfidenceLow      ConfidenceBand = "Low"
	ConfidenceModerate ConfidenceBand = "Moderate"
	ConfidenceHigh     ConfidenceBand = "High"
	ConfidenceHighest  ConfidenceBand = "Highest"
)

// BandFor maps a 0..1 confidence score onto its band.
// Lower bounds are exclusive: 0.6 is Low, 0.61 is Moderate.
func BandFor(score float64) ConfidenceBand {
	switch {
	case score > 0.85:
		return ConfidenceHighest
	case score > 0.7:
		return ConfidenceHigh
	case score > 0.6:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// PotentialMatch is an existing location suspected of duplicating a contribution.
// Matches only live for the duration of one review and are never cached.
type PotentialMatch struct {
	OSID        OSID    `json:"os_id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	CountryCode string  `json:"country_code,omitempty"`
	ClaimStatus string  `json:"claim_status,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Band returns the display band of the match confidence.
func (m PotentialMatch) Band() ConfidenceBand {
	return BandFor(m.Confidence)
}

// Candidate is one name/address search hit: an existing location and, when the backend
// scored it, its similarity to the query.
type Candidate struct {
	ProductionLocation
	Confidence *float64 `json:"confidence,omitempty"`
}

// Band returns the display band, or "" when the backend sent no score.
func (c Candidate) Band() ConfidenceBand {
	if c.Confidence == nil {
		return ""
	}
	return BandFor(*c.Confidence)
}
