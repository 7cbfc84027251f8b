// Package validation provides request validation using the validator/v10 library
// plus notblank and the contribution-specific tags osid, workers, justification and country.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/opensupplyhub/contribute/internal/domain"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/normalize"
)

// MinJustificationLength is the number of non-whitespace characters a rejection reason needs.
const MinJustificationLength = 30

// RequiredMessage is the error shown under an empty required field.
const RequiredMessage = "This field is required."

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if before, _, found := strings.Cut(name, ","); found {
			name = before
		}
		if name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "osid", func(fl validator.FieldLevel) bool {
		return domain.IsValidOSID(fl.Field().String())
	})
	mustRegister(v, "workers", func(fl validator.FieldLevel) bool {
		return domain.ValidWorkersInput(fl.Field().String())
	})
	mustRegister(v, "justification", func(fl validator.FieldLevel) bool {
		return JustificationOK(fl.Field().String())
	})
	mustRegister(v, "country", func(fl validator.FieldLevel) bool {
		code := normalize.CountryCode(fl.Field().String())
		return len(code) == 2 && isUpperAlpha(code)
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// JustificationOK reports whether a rich-text rejection reason is long enough once markup is removed.
func JustificationOK(html string) bool {
	return normalize.NonWhitespaceLen(normalize.PlainText(html)) >= MinJustificationLength
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Var validates a single value against a tag list, e.g. Var(workers, "omitempty,workers").
func (v *Validator) Var(field string, value any, tags string) error {
	if err := v.v.Var(value, tags); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return domainerrors.ValidationWithDetails("validation failed",
				map[string]string{field: v.friendlyMessage(validationErrs[0])})
		}
		return err
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

//nolint:gocyclo // Switch statement covering validation tags is intentionally exhaustive.
func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return RequiredMessage
	case "osid":
		return fmt.Sprintf("Enter a valid OS ID (%d letters and digits).", domain.OSIDLength)
	case "workers":
		return domain.WorkersFormatMessage
	case "justification":
		return fmt.Sprintf("Enter at least %d characters to reject this contribution.", MinJustificationLength)
	case "country":
		return "Select a valid country."
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
