package errs

import (
	"net/http"
)

// NewUnauthorizedError creates a 401 Unauthorized HTTPError.
//
// override lets the client show message verbatim instead of a generic text.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusUnauthorized)),
		Message:  message,
		Status:   http.StatusUnauthorized,
		Override: override,
	}
}

// NewForbiddenError creates a 403 Forbidden HTTPError.
func NewForbiddenError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusForbidden)),
		Message:  message,
		Status:   http.StatusForbidden,
		Override: override,
	}
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// code defaults to "BAD_REQUEST" when nil; errors carries field-level
// validation failures; action is an optional client instruction.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusBadRequest))
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusBadRequest,
		Override: override,
		Errors:   errors,
		Action:   action,
	}
}

// NewNotFoundError creates a 404 Not Found HTTPError.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusNotFound))
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusNotFound,
		Override: override,
	}
}

// NewConflictError creates a 409 Conflict HTTPError. It is returned when a
// row changed under us (conditional update matched nothing) or a unique
// business key already exists.
func NewConflictError(message string, code *string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusConflict))
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusConflict,
		Override: true,
	}
}

// NewUnprocessableError creates a 422 HTTPError for well-formed requests
// that the current state of a resource does not allow.
func NewUnprocessableError(message string, code *string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusUnprocessableEntity))
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusUnprocessableEntity,
		Override: true,
	}
}

// NewTooManyRequestsError creates a 429 HTTPError.
func NewTooManyRequestsError(message string) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusTooManyRequests)),
		Message:  message,
		Status:   http.StatusTooManyRequests,
		Override: true,
	}
}

// NewInternalServerError creates a 500 with the generic status text; the
// real cause is logged, never sent to the client.
func NewInternalServerError() *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusInternalServerError)),
		Message:  http.StatusText(http.StatusInternalServerError),
		Status:   http.StatusInternalServerError,
		Override: false,
	}
}

// ValidationError converts a generic validation error into a 400.
func ValidationError(err error) *HTTPError {
	return NewBadRequestError("Validation failed: "+err.Error(), false, nil, nil, nil)
}

// Code returns a pointer to code, for the constructors' optional code argument.
func Code(code string) *string {
	return &code
}
