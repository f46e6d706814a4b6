package errors

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the acting user lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrExportFailed is returned when the spreadsheet could not be written.
	ErrExportFailed = errors.New("export failed")
)

// Form error messages shown next to the offending field.
const (
	MsgNotBlank       = "This value should not be blank."
	MsgInvalidChoice  = "This value is not valid."
	MsgPasswordsMatch = "The password fields must match."
	MsgPasswordLength = "This value is too long. It should have 72 bytes or less."
	MsgEmailInUse     = "This email is already in use"
	MsgUsernameInUse  = "This username is already in use"
)

// FieldError is a single error attached to a form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors for a submission. Order is preserved.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, fe := range e {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field + ": " + fe.Message)
	}
	return b.String()
}

// Add appends an error for field.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Has reports whether field carries at least one error.
func (e ValidationErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// For returns all messages attached to field.
func (e ValidationErrors) For(field string) []string {
	var out []string
	for _, fe := range e {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

// ByField groups the messages per field, for form redisplay.
func (e ValidationErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, fe := range e {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string][]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, "validation failed", "VALIDATION_ERROR")
		httpErr.Fields = verrs.ByField()
		return httpErr
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "Not found", "USER_NOT_FOUND")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrExportFailed):
		return NewHTTPError(http.StatusInternalServerError, "failed to export users", "EXPORT_FAILED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
