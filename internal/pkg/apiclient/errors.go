package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the backend's own message when it sent one, otherwise the
	// HTTP status text.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

// Message extracts the text a user should see for err, or fallback when err
// carries nothing better than a status line.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Message != http.StatusText(apiErr.StatusCode) {
		return apiErr.Message
	}
	return fallback
}

func hasStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// errorBody covers the shapes the backend uses for failures.
type errorBody struct {
	Message string         `json:"message"`
	Error   string         `json:"error"`
	Detail  string         `json:"detail"`
	Errors  map[string]any `json:"errors"`
}

func newError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, StatusCode: status, Message: http.StatusText(status)}
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return e
	}
	switch {
	case eb.Message != "":
		e.Message = eb.Message
	case eb.Error != "":
		e.Message = eb.Error
	case eb.Detail != "":
		e.Message = eb.Detail
	case len(eb.Errors) > 0:
		e.Message = FlattenFieldErrors(eb.Errors)
	}
	return e
}

// FlattenFieldErrors renders a field→messages map as "field: msg; field: msg"
// with fields in sorted order.
func FlattenFieldErrors(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			parts = append(parts, k+": "+v)
		case []any:
			msgs := make([]string, 0, len(v))
			for _, m := range v {
				msgs = append(msgs, fmt.Sprint(m))
			}
			parts = append(parts, k+": "+strings.Join(msgs, ", "))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(parts, "; ")
}
