package oshub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensupplyhub/contribute/internal/domain"
)

var filterPaths = map[domain.FilterKind]string{
	domain.FilterCountries:       "/api/countries/",
	domain.FilterSectors:         "/api/sectors/",
	domain.FilterProcessingTypes: "/api/facility-processing-types/",
}

// processingGroup is one facility type with its processing types.
type processingGroup struct {
	FacilityType    string   `json:"facilityType"`
	ProcessingTypes []string `json:"processingTypes"`
}

// FilterOptions fetches the option list for one select input.
//
// The endpoints answer in different shapes: countries as [code, name] pairs,
// sectors as plain strings, processing types grouped by facility type.
func (c *Client) FilterOptions(ctx context.Context, kind domain.FilterKind) ([]domain.FilterOption, error) {
	path, ok := filterPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown filter kind %q", kind)
	}

	var raw json.RawMessage
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	switch kind {
	case domain.FilterCountries:
		var pairs [][2]string
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, fmt.Errorf("decode countries: %w", err)
		}
		opts := make([]domain.FilterOption, 0, len(pairs))
		for _, p := range pairs {
			opts = append(opts, domain.FilterOption{Value: p[0], Label: p[1]})
		}
		return opts, nil

	case domain.FilterSectors:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode sectors: %w", err)
		}
		return plainOptions(names), nil

	default:
		var groups []processingGroup
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("decode processing types: %w", err)
		}
		seen := make(map[string]struct{})
		var names []string
		for _, g := range groups {
			for _, p := range g.ProcessingTypes {
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				names = append(names, p)
			}
		}
		return plainOptions(names), nil
	}
}

func plainOptions(names []string) []domain.FilterOption {
	opts := make([]domain.FilterOption, 0, len(names))
	for _, n := range names {
		opts = append(opts, domain.FilterOption{Value: n, Label: n})
	}
	return opts
}
