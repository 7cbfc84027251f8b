package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/service"
	"github.com/opensupplyhub/contribute/internal/workflow"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getLanding",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/production-location",
		Summary:     "Open the search landing page",
		Description: "Selects the tab named by the tab parameter. A missing or unknown tab answers 302 to the default tab.",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
		Responses: map[string]*huma.Response{
			"302": {Description: "Redirect to the canonical tab URL"},
		},
	}, s.handleGetLanding)

	huma.Register(s.api, huma.Operation{
		OperationID: "selectTab",
		Method:      http.MethodPut,
		Path:        "/api/v1/contribute/production-location/tab",
		Summary:     "Select search tab",
		Description: "Switches tabs keeping both tabs' inputs",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSelectTab)

	huma.Register(s.api, huma.Operation{
		OperationID: "setOSIDSearch",
		Method:      http.MethodPut,
		Path:        "/api/v1/contribute/production-location/os-id",
		Summary:     "Set OS ID input",
		Description: "Updates the OS ID input; the value is upper-cased",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSetOSID)

	huma.Register(s.api, huma.Operation{
		OperationID: "submitOSIDSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/production-location/os-id/submit",
		Summary:     "Submit OS ID search",
		Description: "Returns the result route of a complete OS ID",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSubmitOSID)

	huma.Register(s.api, huma.Operation{
		OperationID: "setNameAddressSearch",
		Method:      http.MethodPut,
		Path:        "/api/v1/contribute/production-location/name-address",
		Summary:     "Set name/address input",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSetNameAddressField)

	huma.Register(s.api, huma.Operation{
		OperationID: "blurNameAddressSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/production-location/name-address/blur",
		Summary:     "Mark name/address input touched",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleBlurNameAddressField)

	huma.Register(s.api, huma.Operation{
		OperationID: "submitNameAddressSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/production-location/name-address/submit",
		Summary:     "Submit name/address search",
		Description: "Returns the result route with the encoded query",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSubmitNameAddress)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupOSID",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/single-location/search/id/{osID}",
		Summary:     "Look up an OS ID",
		Description: "Fetches the production location for an OS ID and presents the result",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleLookupOSID)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchCandidates",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/single-location/search/result",
		Summary:     "Search potential matches",
		Description: "Lists production locations matching a name, address and country",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSearchCandidates)
}

// === DTOs ===

// GetLandingInput contains parameters for opening the landing page.
type GetLandingInput struct {
	SessionInput
	Tab string `query:"tab" doc:"Selected tab: os-id or name-address"`
}

// LandingOutput wraps the landing view for Huma.
type LandingOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     service.LandingView
}

// SelectTabRequest is the request body for selecting a tab.
type SelectTabRequest struct {
	Tab workflow.Tab `json:"tab" enum:"os-id,name-address" doc:"Tab to select"`
}

// SelectTabInput wraps the select tab request for Huma.
type SelectTabInput struct {
	SessionInput
	Body SelectTabRequest
}

// SetValueRequest is the request body for a single text input.
type SetValueRequest struct {
	Value string `json:"value" maxLength:"200" doc:"Input value"`
}

// SetOSIDInput wraps the OS ID input request for Huma.
type SetOSIDInput struct {
	SessionInput
	Body SetValueRequest
}

// SubmitSearchInput contains parameters for submitting a search tab.
type SubmitSearchInput struct {
	SessionInput
}

// NavigateResponse names the client route to navigate to.
type NavigateResponse struct {
	Path string `json:"path" doc:"Client route"`
}

// NavigateOutput wraps the navigation response for Huma.
type NavigateOutput struct {
	Body NavigateResponse
}

// SearchFieldRequest is the request body for a name/address input.
type SearchFieldRequest struct {
	Field string `json:"field" enum:"name,address,country" doc:"Input name"`
	Value string `json:"value" maxLength:"500" doc:"Input value"`
}

// SetSearchFieldInput wraps the name/address input request for Huma.
type SetSearchFieldInput struct {
	SessionInput
	Body SearchFieldRequest
}

// BlurFieldRequest is the request body for marking an input touched.
type BlurFieldRequest struct {
	Field string `json:"field" doc:"Input name"`
}

// BlurSearchFieldInput wraps the blur request for Huma.
type BlurSearchFieldInput struct {
	SessionInput
	Body BlurFieldRequest
}

// LandingViewOutput wraps the landing view for Huma.
type LandingViewOutput struct {
	Body service.LandingView
}

// LookupOSIDInput contains parameters for looking up an OS ID.
type LookupOSIDInput struct {
	SessionInput
	OSID string `path:"osID" doc:"OS ID"`
}

// OSIDResultOutput wraps the OS ID result for Huma.
type OSIDResultOutput struct {
	Body workflow.OSIDResult
}

// SearchCandidatesInput contains the name/address query.
type SearchCandidatesInput struct {
	SessionInput
	Name    string `query:"name" doc:"Location name"`
	Address string `query:"address" doc:"Location address"`
	Country string `query:"country" doc:"Country code or name"`
}

// CandidatesOutput wraps the potential match list for Huma.
type CandidatesOutput struct {
	Body workflow.CandidatesResult
}

// === Handlers ===

func (s *Server) handleGetLanding(ctx context.Context, input *GetLandingInput) (*LandingOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}

	view, redirect, err := s.services.Search.Landing(ctx, wf, input.Tab)
	if err != nil {
		return nil, err
	}

	out := &LandingOutput{Status: http.StatusOK, Body: view}
	if redirect != "" {
		out.Status = http.StatusFound
		out.Location = apiPrefix + redirect
	}
	return out, nil
}

func (s *Server) handleSelectTab(ctx context.Context, input *SelectTabInput) (*LandingViewOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.SelectTab(ctx, wf, input.Body.Tab)
	if err != nil {
		return nil, err
	}
	return &LandingViewOutput{Body: view}, nil
}

func (s *Server) handleSetOSID(ctx context.Context, input *SetOSIDInput) (*LandingViewOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.SetOSID(ctx, wf, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &LandingViewOutput{Body: view}, nil
}

func (s *Server) handleSubmitOSID(ctx context.Context, input *SubmitSearchInput) (*NavigateOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	path, err := s.services.Search.SubmitOSID(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &NavigateOutput{Body: NavigateResponse{Path: path}}, nil
}

func (s *Server) handleSetNameAddressField(ctx context.Context, input *SetSearchFieldInput) (*LandingViewOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.SetNameAddressField(ctx, wf, input.Body.Field, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &LandingViewOutput{Body: view}, nil
}

func (s *Server) handleBlurNameAddressField(ctx context.Context, input *BlurSearchFieldInput) (*LandingViewOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.BlurNameAddressField(ctx, wf, input.Body.Field)
	if err != nil {
		return nil, err
	}
	return &LandingViewOutput{Body: view}, nil
}

func (s *Server) handleSubmitNameAddress(ctx context.Context, input *SubmitSearchInput) (*NavigateOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	path, err := s.services.Search.SubmitNameAddress(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &NavigateOutput{Body: NavigateResponse{Path: path}}, nil
}

func (s *Server) handleLookupOSID(ctx context.Context, input *LookupOSIDInput) (*OSIDResultOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.LookupOSID(ctx, wf, input.OSID)
	if err != nil {
		return nil, err
	}
	return &OSIDResultOutput{Body: view}, nil
}

func (s *Server) handleSearchCandidates(ctx context.Context, input *SearchCandidatesInput) (*CandidatesOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Search.SearchCandidates(ctx, wf, workflow.SearchQuery{
		Name:    input.Name,
		Address: input.Address,
		Country: input.Country,
	})
	if err != nil {
		return nil, err
	}
	return &CandidatesOutput{Body: view}, nil
}
