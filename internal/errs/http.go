package errs

import "strings"

// FieldError represents a field-level validation error.
//
//	{ "field": "email", "error": "must be a valid email address" }
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ActionType describes what the client should do next.
type ActionType string

const (
	// ActionTypeRedirect tells the client to redirect; Value holds the URL.
	ActionTypeRedirect ActionType = "redirect"
)

// Action is an optional client instruction attached to an error.
type Action struct {
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
	Value   string     `json:"value"`
}

// HTTPError is the only error shape the API sends to clients.
//
//   - Code: machine-friendly error code (e.g. "PAYOUT_ALREADY_PROCESSING").
//   - Message: human-friendly message.
//   - Status: HTTP status code.
//   - Override: the client may show Message as-is.
//   - Errors: per-field validation errors.
//   - Action: optional client instruction.
type HTTPError struct {
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Status   int          `json:"status"`
	Override bool         `json:"override"`
	Errors   []FieldError `json:"errors"`
	Action   *Action      `json:"action"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is reports true for any *HTTPError target; it compares type only, not
// code or status.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a copy of e with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:     e.Code,
		Message:  message,
		Status:   e.Status,
		Override: e.Override,
		Errors:   e.Errors,
		Action:   e.Action,
	}
}

// MakeUpperCaseWithUnderscores converts "Bad Request" into "BAD_REQUEST".
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
