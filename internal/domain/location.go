// Package domain contains the core entities of the contribution and moderation workflow.
package domain

import (
	"fmt"
	"slices"
)

// ClaimStatus is the ownership state of a production location.
// The zero value means the backend sent no claim status.
type ClaimStatus string

// Claim statuses reported by the backend.
const (
	ClaimStatusNone      ClaimStatus = ""
	ClaimStatusUnclaimed ClaimStatus = "unclaimed"
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusClaimed   ClaimStatus = "claimed"
)

// Valid reports whether s is a known claim status (including none).
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusNone, ClaimStatusUnclaimed, ClaimStatusPending, ClaimStatusClaimed:
		return true
	}
	return false
}

// ExtendedFields holds the optional "additional information" attributes of a location.
// Each known field is explicit; unknown keys from the backend are dropped on decode.
type ExtendedFields struct {
	Sector          []string         `json:"sector,omitempty"`
	ProductType     []string         `json:"product_type,omitempty"`
	LocationType    []string         `json:"location_type,omitempty"`
	ProcessingType  []string         `json:"processing_type,omitempty"`
	NumberOfWorkers *NumberOfWorkers `json:"number_of_workers,omitempty"`
	ParentCompany   string           `json:"parent_company,omitempty"`
}

// IsZero reports whether no extended field is set.
func (e ExtendedFields) IsZero() bool {
	return len(e.Sector) == 0 &&
		len(e.ProductType) == 0 &&
		len(e.LocationType) == 0 &&
		len(e.ProcessingType) == 0 &&
		e.NumberOfWorkers == nil &&
		e.ParentCompany == ""
}

// ProductionLocation is a factory or facility record as served by the backend.
type ProductionLocation struct {
	OSID            OSID        `json:"os_id"`
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	Country         Country     `json:"country"`
	HistoricalOSIDs []OSID      `json:"historical_os_id,omitempty"`
	ClaimStatus     ClaimStatus `json:"claim_status,omitempty"`
	ExtendedFields
}

// IsHistoricalID reports whether id is one of the superseded identifiers of this location.
func (l *ProductionLocation) IsHistoricalID(id OSID) bool {
	return id != l.OSID && slices.Contains(l.HistoricalOSIDs, id)
}

// Normalize drops the current id and duplicates from the historical list.
// Backend payloads occasionally repeat the current id there.
func (l *ProductionLocation) Normalize() {
	if len(l.HistoricalOSIDs) == 0 {
		return
	}
	seen := make(map[OSID]struct{}, len(l.HistoricalOSIDs))
	kept := l.HistoricalOSIDs[:0]
	for _, id := range l.HistoricalOSIDs {
		if id == l.OSID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
	}
	l.HistoricalOSIDs = kept
}

// Validate checks the identifier invariants of the record.
func (l *ProductionLocation) Validate() error {
	if !IsValidOSID(string(l.OSID)) {
		return fmt.Errorf("invalid os id %q", l.OSID)
	}
	for _, id := range l.HistoricalOSIDs {
		if id == l.OSID {
			return fmt.Errorf("historical os ids contain the current id %q", id)
		}
	}
	if !l.ClaimStatus.Valid() {
		return fmt.Errorf("unknown claim status %q", l.ClaimStatus)
	}
	return nil
}
