package workflow

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/normalize"
	"github.com/opensupplyhub/contribute/internal/state"
	"github.com/opensupplyhub/contribute/internal/validation"
)

// Extended form fields.
const (
	FieldSector          = "sector"
	FieldProductType     = "product_type"
	FieldLocationType    = "location_type"
	FieldProcessingType  = "processing_type"
	FieldNumberOfWorkers = "number_of_workers"
	FieldParentCompany   = "parent_company"
)

var extendedFields = []string{
	FieldSector, FieldProductType, FieldLocationType,
	FieldProcessingType, FieldNumberOfWorkers, FieldParentCompany,
}

var listFields = []string{FieldSector, FieldProductType, FieldLocationType, FieldProcessingType}

var formValidator = validation.New()

// Tooltips on the submit button.
const (
	MaintenanceTooltip = "Open Supply Hub is undergoing maintenance and not accepting new data at the moment. " +
		"Please try again in a few minutes."
	InvalidFormTooltip = "Fill in the required fields and correct the highlighted errors before submitting."
	SubmittingTooltip  = "Your submission is being sent."
	SubmittedTooltip   = "This contribution has already been submitted."
)

// ContactSupport is shown under non-field submission errors.
const ContactSupport = "If the problem persists, contact support at support@opensupplyhub.org " +
	"and include the error details above."

// FormValues are the contribution form inputs.
type FormValues struct {
	Name            string   `json:"name" validate:"notblank"`
	Address         string   `json:"address" validate:"notblank"`
	Country         string   `json:"country" validate:"notblank,country"`
	Sector          []string `json:"sector,omitempty"`
	ProductType     []string `json:"product_type,omitempty"`
	LocationType    []string `json:"location_type,omitempty"`
	ProcessingType  []string `json:"processing_type,omitempty"`
	NumberOfWorkers string   `json:"number_of_workers,omitempty" validate:"omitempty,workers"`
	ParentCompany   string   `json:"parent_company,omitempty"`
}

// SubmitFailure is the dismissible error panel for non-field submission errors.
type SubmitFailure struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
	Detail  []string `json:"detail,omitempty"`
	Support string   `json:"support"`
}

// SubmitButton is the state of the submit control.
type SubmitButton struct {
	Enabled bool   `json:"enabled"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Form is the contribution form controller state.
type Form struct {
	Mode           domain.RequestType `json:"mode"`
	OSID           domain.OSID        `json:"os_id,omitempty"`
	Values         FormValues         `json:"values"`
	Touched        map[string]bool    `json:"touched"`
	Errors         map[string]string  `json:"errors"`
	UpstreamErrors map[string]string  `json:"upstream_errors,omitempty"`
	Failure        *SubmitFailure     `json:"failure,omitempty"`
	Additional     bool               `json:"additional_information"`
	Submitting     bool               `json:"submitting"`
	Submitted      bool               `json:"submitted"`
}

// Initialize creates a form for mode. UPDATE requires the located production location.
func Initialize(mode domain.RequestType, prefill *domain.ProductionLocation) (*Form, error) {
	if !mode.Valid() {
		return nil, domainerrors.Validation(fmt.Sprintf("unknown contribution mode %q", mode))
	}
	if mode == domain.RequestUpdate && (prefill == nil || prefill.OSID == "") {
		return nil, domainerrors.Validation("an update needs an existing production location")
	}

	f := &Form{
		Mode:    mode,
		Touched: make(map[string]bool),
		Errors:  make(map[string]string),
	}
	if prefill != nil {
		f.OSID = prefill.OSID
		f.Values = valuesFrom(prefill)
		f.Additional = !prefill.ExtendedFields.IsZero()
	}
	f.revalidate()
	return f, nil
}

func valuesFrom(loc *domain.ProductionLocation) FormValues {
	v := FormValues{
		Name:           loc.Name,
		Address:        loc.Address,
		Country:        loc.Country.Alpha2,
		Sector:         slices.Clone(loc.Sector),
		ProductType:    slices.Clone(loc.ProductType),
		LocationType:   slices.Clone(loc.LocationType),
		ProcessingType: slices.Clone(loc.ProcessingType),
		ParentCompany:  loc.ParentCompany,
	}
	if loc.NumberOfWorkers != nil {
		v.NumberOfWorkers = loc.NumberOfWorkers.String()
	}
	return v
}

// SetField assigns one field. Text fields take a string, list fields a []string.
// Editing a field clears the backend error reported for it.
func (f *Form) SetField(name string, value any) error {
	if slices.Contains(extendedFields, name) && !f.Additional {
		return domainerrors.ValidationWithDetails("additional information is turned off",
			map[string]string{name: "Turn on additional information to edit this field."})
	}

	if slices.Contains(listFields, name) {
		list, err := stringList(value)
		if err != nil {
			return domainerrors.ValidationWithDetails("invalid value", map[string]string{name: err.Error()})
		}
		*f.listField(name) = list
	} else {
		text, ok := value.(string)
		if !ok {
			return domainerrors.ValidationWithDetails("invalid value", map[string]string{name: "must be text"})
		}
		target := f.textField(name)
		if target == nil {
			return domainerrors.Validation(fmt.Sprintf("unknown form field %q", name))
		}
		*target = text
	}

	delete(f.UpstreamErrors, name)
	f.revalidate()
	return nil
}

func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a list of text values")
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("must be a list of text values")
	}
}

func (f *Form) textField(name string) *string {
	switch name {
	case FieldName:
		return &f.Values.Name
	case FieldAddress:
		return &f.Values.Address
	case FieldCountry:
		return &f.Values.Country
	case FieldNumberOfWorkers:
		return &f.Values.NumberOfWorkers
	case FieldParentCompany:
		return &f.Values.ParentCompany
	}
	return nil
}

func (f *Form) listField(name string) *[]string {
	switch name {
	case FieldSector:
		return &f.Values.Sector
	case FieldProductType:
		return &f.Values.ProductType
	case FieldLocationType:
		return &f.Values.LocationType
	default:
		return &f.Values.ProcessingType
	}
}

// BlurField marks a field touched so its error becomes visible.
func (f *Form) BlurField(name string) error {
	if f.textField(name) == nil && !slices.Contains(listFields, name) {
		return domainerrors.Validation(fmt.Sprintf("unknown form field %q", name))
	}
	f.touch(name)
	return nil
}

func (f *Form) touch(name string) {
	if f.Touched == nil {
		f.Touched = make(map[string]bool)
	}
	f.Touched[name] = true
}

// SetAdditionalInformation toggles the extended fields. Turning it off clears them.
func (f *Form) SetAdditionalInformation(on bool) {
	f.Additional = on
	if on {
		return
	}
	f.Values.Sector = nil
	f.Values.ProductType = nil
	f.Values.LocationType = nil
	f.Values.ProcessingType = nil
	f.Values.NumberOfWorkers = ""
	f.Values.ParentCompany = ""
	for _, name := range extendedFields {
		delete(f.Touched, name)
		delete(f.UpstreamErrors, name)
	}
	f.revalidate()
}

// Validate recomputes and returns every local field error.
func (f *Form) Validate() map[string]string {
	f.revalidate()
	return maps.Clone(f.Errors)
}

func (f *Form) revalidate() {
	f.Errors = make(map[string]string)
	if err := formValidator.Validate(f.Values); err != nil {
		var domainErr *domainerrors.Error
		if domainerrors.As(err, &domainErr) {
			maps.Copy(f.Errors, domainErr.FieldErrors())
		}
	}
}

// IsValid reports whether the form has no local errors.
func (f *Form) IsValid() bool {
	return len(f.Errors) == 0
}

// VisibleErrors returns the errors to render inline: local errors of touched fields
// and backend field errors.
func (f *Form) VisibleErrors() map[string]string {
	out := make(map[string]string)
	for name, msg := range f.Errors {
		if f.Touched[name] {
			out[name] = msg
		}
	}
	maps.Copy(out, f.UpstreamErrors)
	return out
}

// SubmitState returns the submit button state. Maintenance mode wins over everything else.
func (f *Form) SubmitState(maintenance bool) SubmitButton {
	switch {
	case maintenance:
		return SubmitButton{Tooltip: MaintenanceTooltip}
	case f.Submitted:
		return SubmitButton{Tooltip: SubmittedTooltip}
	case f.Submitting:
		return SubmitButton{Tooltip: SubmittingTooltip}
	case !f.IsValid():
		return SubmitButton{Tooltip: InvalidFormTooltip}
	default:
		return SubmitButton{Enabled: true}
	}
}

// Payload builds the request body from the current values.
func (f *Form) Payload() domain.ContributionData {
	data := domain.ContributionData{
		Name:        normalize.Field(f.Values.Name),
		Address:     normalize.Field(f.Values.Address),
		CountryCode: normalize.CountryCode(f.Values.Country),
	}
	if !f.Additional {
		return data
	}

	data.Sector = cleanList(f.Values.Sector)
	data.ProductType = cleanList(f.Values.ProductType)
	data.LocationType = cleanList(f.Values.LocationType)
	data.ProcessingType = cleanList(f.Values.ProcessingType)
	data.ParentCompany = normalize.Field(f.Values.ParentCompany)
	if w, err := domain.ParseNumberOfWorkers(f.Values.NumberOfWorkers); err == nil && f.Values.NumberOfWorkers != "" {
		data.NumberOfWorkers = &w
	}
	return data
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = normalize.Field(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// BeginSubmit marks the form as submitting. It fails when the button would be disabled.
func (f *Form) BeginSubmit(maintenance bool) error {
	if maintenance {
		return domainerrors.Maintenance(MaintenanceTooltip)
	}
	if f.Submitted {
		return domainerrors.Conflict("this contribution has already been submitted")
	}
	if f.Submitting {
		return domainerrors.Conflict("a submission is already in flight")
	}
	if !f.IsValid() {
		for name := range f.Errors {
			f.touch(name)
		}
		return domainerrors.ValidationWithDetails("the form has errors", maps.Clone(f.Errors))
	}
	f.Submitting = true
	f.Failure = nil
	return nil
}

// ApplySubmitFailure records a failed submission. Values are kept. Backend errors on form
// fields render inline, everything else lands in the summary panel. It returns the toast
// message for transient failures, which leave the form untouched.
func (f *Form) ApplySubmitFailure(failure *state.Failure) string {
	f.Submitting = false
	if failure == nil {
		return ""
	}

	if failure.Code.Transient() {
		return failure.Message
	}

	switch failure.Code {
	case domainerrors.CodeUpstreamField:
		var general []string
		for name, msg := range failure.Fields {
			if f.isFormField(name) {
				if f.UpstreamErrors == nil {
					f.UpstreamErrors = make(map[string]string)
				}
				f.UpstreamErrors[name] = msg
				continue
			}
			general = append(general, fieldMessage(name, msg))
		}
		slices.Sort(general)
		general = append(general, failure.Errors...)
		if len(general) > 0 {
			f.Failure = &SubmitFailure{
				Message: failure.Message,
				Errors:  general,
				Detail:  failure.Detail,
				Support: ContactSupport,
			}
		}
	default:
		f.Failure = &SubmitFailure{
			Message: failure.Message,
			Detail:  failure.Detail,
			Support: ContactSupport,
		}
	}
	return ""
}

func fieldMessage(name, msg string) string {
	if name == "" {
		return msg
	}
	return strings.ReplaceAll(name, "_", " ") + ": " + msg
}

func (f *Form) isFormField(name string) bool {
	return f.textField(name) != nil || slices.Contains(listFields, name)
}

// ApplySubmitSuccess ends a successful submission. The form cannot be submitted again.
func (f *Form) ApplySubmitSuccess() {
	f.Submitting = false
	f.Submitted = true
	f.Failure = nil
	f.UpstreamErrors = nil
}

// DismissFailure closes the error panel.
func (f *Form) DismissFailure() {
	f.Failure = nil
}
