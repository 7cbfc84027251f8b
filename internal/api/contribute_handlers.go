package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/opensupplyhub/contribute/internal/service"
)

func (s *Server) registerContributeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "initializeInfoForm",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/single-location/info",
		Summary:     "Open the contribution form",
		Description: "Opens the form in update mode for os_id, or in create mode prefilled from a name/address search",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleInitializeForm)

	huma.Register(s.api, huma.Operation{
		OperationID: "getInfoForm",
		Method:      http.MethodGet,
		Path:        "/api/v1/contribute/single-location/info",
		Summary:     "Get the contribution form",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleGetForm)

	huma.Register(s.api, huma.Operation{
		OperationID: "setInfoField",
		Method:      http.MethodPut,
		Path:        "/api/v1/contribute/single-location/info/fields",
		Summary:     "Set a form field",
		Description: "Sets one field; list fields take arrays, number_of_workers takes a string",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSetFormField)

	huma.Register(s.api, huma.Operation{
		OperationID: "blurInfoField",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/single-location/info/blur",
		Summary:     "Mark a form field touched",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleBlurFormField)

	huma.Register(s.api, huma.Operation{
		OperationID: "setAdditionalInformation",
		Method:      http.MethodPut,
		Path:        "/api/v1/contribute/single-location/info/additional-information",
		Summary:     "Toggle additional information",
		Description: "Shows or hides the extended fields",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSetAdditionalInformation)

	huma.Register(s.api, huma.Operation{
		OperationID: "submitInfoForm",
		Method:      http.MethodPost,
		Path:        "/api/v1/contribute/single-location/info/submit",
		Summary:     "Submit the contribution",
		Description: "Validates and sends the form. On success the response carries the tracker dialog.",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleSubmitForm)

	huma.Register(s.api, huma.Operation{
		OperationID: "dismissInfoFailure",
		Method:      http.MethodDelete,
		Path:        "/api/v1/contribute/single-location/info/failure",
		Summary:     "Dismiss the error summary",
		Tags:        []string{"Contribute"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleDismissFailure)
}

// === DTOs ===

// InitializeFormRequest is the request body for opening the form.
type InitializeFormRequest struct {
	OSID    string `json:"os_id,omitempty" doc:"OS ID of the location to update"`
	Name    string `json:"name,omitempty" maxLength:"200" doc:"Prefilled name"`
	Address string `json:"address,omitempty" maxLength:"500" doc:"Prefilled address"`
	Country string `json:"country,omitempty" doc:"Prefilled country"`
}

// InitializeFormInput wraps the initialize request for Huma.
type InitializeFormInput struct {
	SessionInput
	Body InitializeFormRequest
}

// FormInput contains parameters for form operations without a body.
type FormInput struct {
	SessionInput
}

// FormOutput wraps the form view for Huma.
type FormOutput struct {
	Body service.FormView
}

// SetFormFieldRequest is the request body for setting a field.
type SetFormFieldRequest struct {
	Field string `json:"field" doc:"Field name"`
	Value any    `json:"value" doc:"Field value"`
}

// SetFormFieldInput wraps the set field request for Huma.
type SetFormFieldInput struct {
	SessionInput
	Body SetFormFieldRequest
}

// BlurFormFieldInput wraps the blur request for Huma.
type BlurFormFieldInput struct {
	SessionInput
	Body BlurFieldRequest
}

// AdditionalInformationRequest is the request body for the extended fields toggle.
type AdditionalInformationRequest struct {
	Enabled bool `json:"enabled" doc:"Show the extended fields"`
}

// AdditionalInformationInput wraps the toggle request for Huma.
type AdditionalInformationInput struct {
	SessionInput
	Body AdditionalInformationRequest
}

// === Handlers ===

func (s *Server) handleInitializeForm(ctx context.Context, input *InitializeFormInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.Initialize(ctx, wf, service.InitForm{
		OSID:    input.Body.OSID,
		Name:    input.Body.Name,
		Address: input.Body.Address,
		Country: input.Body.Country,
	})
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleGetForm(ctx context.Context, input *FormInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.Form(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleSetFormField(ctx context.Context, input *SetFormFieldInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.SetField(ctx, wf, input.Body.Field, input.Body.Value)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleBlurFormField(ctx context.Context, input *BlurFormFieldInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.BlurField(ctx, wf, input.Body.Field)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleSetAdditionalInformation(ctx context.Context, input *AdditionalInformationInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.SetAdditionalInformation(ctx, wf, input.Body.Enabled)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleSubmitForm(ctx context.Context, input *FormInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.Submit(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}

func (s *Server) handleDismissFailure(ctx context.Context, input *FormInput) (*FormOutput, error) {
	wf, err := s.RequireSession(ctx, input.SessionInput)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Contribution.DismissFailure(ctx, wf)
	if err != nil {
		return nil, err
	}
	return &FormOutput{Body: view}, nil
}
