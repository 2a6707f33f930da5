package validation

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/errs"
)

// Validatable is implemented by request payload types that know how to validate themselves.
//
// Typical pattern:
// - Define a request struct with validator tags (`validate:"required,email"`)
// - Implement Validate() error that runs validator.Struct(req)
// - Return validator.ValidationErrors, or CustomValidationErrors for rules
//   that tags cannot express (cross-field checks, enum combinations)
type Validatable interface {
	Validate() error
}

// CustomValidationError represents a single validation issue for a specific field.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// BindAndValidate binds path params, query (GET/DELETE) and body into
// payload, then runs payload.Validate(). Failures become a 400 with
// field-level errors.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := c.Bind(payload); err != nil {
		return errs.NewBadRequestError(bindErrorMessage(err), false, nil, nil, nil)
	}

	if msg, fieldErrors := validateStruct(payload); fieldErrors != nil {
		return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
	}

	return nil
}

// AsHTTPError converts a validation failure found outside binding, such as
// a merged partial update, into the same 400 BindAndValidate produces.
func AsHTTPError(err error) error {
	msg, fieldErrors := extractValidationError(err)
	return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
}

func bindErrorMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return "Invalid request payload"
}

func validateStruct(v Validatable) (string, []errs.FieldError) {
	if err := v.Validate(); err != nil {
		return extractValidationError(err)
	}
	return "", nil
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var custom CustomValidationErrors
	if errors.As(err, &custom) {
		for _, ce := range custom {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: ce.Field,
				Error: ce.Message,
			})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Validation failed", []errs.FieldError{{Field: "request", Error: err.Error()}}
	}

	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: fe.Field(),
			Error: fieldErrorMessage(fe),
		})
	}

	return "Validation failed", fieldErrors
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"

	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())

	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())

	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())

	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())

	case "email":
		return "must be a valid email address"

	case "url":
		return "must be a valid URL"

	case "startswith":
		return fmt.Sprintf("must start with %s", fe.Param())

	case "slug":
		return "must contain only lowercase letters, digits and single dashes"

	case "iso3166_1_alpha2":
		return "must be a two-letter country code"

	case "fqdn", "hostname":
		return "must be a valid domain name"

	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: %s:%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
	}
}
