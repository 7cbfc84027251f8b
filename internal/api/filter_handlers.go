package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/domain"
	"github.com/opensupplyhub/contribute/internal/service"
)

func (s *Server) registerFilterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getFilterOptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/filter-options/{kind}",
		Summary:     "Get select options",
		Description: "Returns the countries, sectors or processing types lists, cached per session",
		Tags:        []string{"Filters"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetFilterOptions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFeatureFlags",
		Method:      http.MethodGet,
		Path:        "/api/v1/feature-flags",
		Summary:     "Get feature flags",
		Description: "Returns the instance feature flags. disable_list_uploading puts contributions in maintenance.",
		Tags:        []string{"Filters"},
	}, s.handleGetFeatureFlags)
}

// FilterOptionsInput contains parameters for reading an option list.
type FilterOptionsInput struct {
	SessionInput
	Kind string `path:"kind" doc:"countries, sectors or processing-types"`
}

// FilterOptionsOutput wraps an option list for Huma.
type FilterOptionsOutput struct {
	Body service.FilterOptionsView
}

// FeatureFlagsOutput wraps the feature flags for Huma.
type FeatureFlagsOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         domain.FeatureFlags
}

func (s *Server) handleGetFilterOptions(ctx context.Context, input *FilterOptionsInput) (*FilterOptionsOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Filters.Options(ctx, wf, domain.FilterKind(input.Kind))
	if err != nil {
		return nil, err
	}
	return &FilterOptionsOutput{Body: view}, nil
}

func (s *Server) handleGetFeatureFlags(_ context.Context, _ *struct{}) (*FeatureFlagsOutput, error) {
	var flags domain.FeatureFlags
	if s.backends != nil && s.backends.Flags != nil {
		flags = s.backends.Flags.Flags()
	}
	return &FeatureFlagsOutput{CacheControl: CacheNoStore, Body: flags}, nil
}
