package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	ierr "github.com/rxledger/statements/internal/errors"
)

var validate *validator.Validate

// NewValidator builds the shared validator. Field errors are reported under
// their json names so they match the request body.
func NewValidator() *validator.Validate {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// ValidateRequest validates req and returns a validation error whose details
// map each failing field to its rule
func ValidateRequest(req interface{}) error {
	if validate == nil {
		NewValidator()
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]any)
	var validateErrs validator.ValidationErrors
	if ierr.As(err, &validateErrs) {
		for _, fe := range validateErrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return ierr.WithError(err).
		WithHint("Request validation failed").
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}
