package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Fallback texts shown when the backend gives no usable message.
const (
	VerifyFallbackMessage = "Failed to verify certificate. Please try again."
	IssueFallbackMessage  = "Failed to issue certificate. Please try again."
	LoginFallbackMessage  = "Login failed. Please check your credentials."

	RegisterFallbackMessage = "Registration failed. Please try again."
)

var (
	// ErrNoToken is returned when a login response carries no access token.
	ErrNoToken = errors.New("no access token in response")

	// ErrEmptyCertificateID is returned when verifying a blank identifier.
	ErrEmptyCertificateID = errors.New("certificate ID is required")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
	Message    string
	Reason     string // the "error" field
	// FieldErrors holds per-field validation messages.
	FieldErrors map[string][]string
	Body        string
}

func (e *APIError) Error() string {
	if text := e.FirstOf(e.Detail, e.Message, e.Reason); text != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, text)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// FirstOf returns the first non-empty value.
func (e *APIError) FirstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// VerifyErrorText picks the text shown for a failed verification.
func VerifyErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if text := apiErr.FirstOf(apiErr.Reason, apiErr.Detail, apiErr.Message); text != "" {
			return text
		}
	}
	return VerifyFallbackMessage
}

// IssueErrorText picks the text shown for a failed issuance.
func IssueErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if text := apiErr.FirstOf(apiErr.Detail, apiErr.Message, apiErr.Reason); text != "" {
			return text
		}
		if len(apiErr.FieldErrors) > 0 {
			return formatFieldErrors(apiErr.FieldErrors)
		}
	}
	return IssueFallbackMessage
}

// LoginErrorText picks the text shown for a failed login.
func LoginErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if text := apiErr.FirstOf(apiErr.Detail, apiErr.Reason, apiErr.Message); text != "" {
			return text
		}
	}
	return LoginFallbackMessage
}

// RegisterErrorText picks the text shown for a failed registration. Local
// validation errors are shown as they are.
func RegisterErrorText(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, ErrPasswordMismatch) || errors.Is(err, ErrMissingField) {
			return err.Error()
		}
		return RegisterFallbackMessage
	}
	if len(apiErr.FieldErrors) > 0 {
		return formatFieldErrors(apiErr.FieldErrors)
	}
	if text := apiErr.FirstOf(apiErr.Detail, apiErr.Message, apiErr.Reason); text != "" {
		return text
	}
	return RegisterFallbackMessage
}

func formatFieldErrors(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(fields[name], " "))
	}
	return strings.Join(parts, "; ")
}

// decodeAPIError builds an APIError from an error response. The body is
// consumed but not closed.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	apiErr.Body = string(data)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return apiErr
	}

	for key, raw := range fields {
		switch key {
		case "detail":
			apiErr.Detail = asText(raw)
		case "message":
			apiErr.Message = asText(raw)
		case "error":
			apiErr.Reason = asText(raw)
		default:
			var messages []string
			if err := json.Unmarshal(raw, &messages); err == nil && len(messages) > 0 {
				if apiErr.FieldErrors == nil {
					apiErr.FieldErrors = make(map[string][]string)
				}
				apiErr.FieldErrors[key] = messages
			}
		}
	}

	return apiErr
}

// asText decodes a string, or joins a list of strings.
func asText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}
