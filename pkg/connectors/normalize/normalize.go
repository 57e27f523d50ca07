// pkg/connectors/normalize/normalize.go
package normalize

import (
	"fmt"
	"net/http"
	"strconv"
)

// Code is the stable machine-readable error taxonomy surfaced at the
// connector boundary.
type Code string

const (
	CodeValidation     Code = "VALIDATION"
	CodeAuthRequired   Code = "AUTH_REQUIRED"
	CodeAuthFailed     Code = "AUTH_FAILED"
	CodeConfigRequired Code = "CONFIG_REQUIRED"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeUpstream       Code = "UPSTREAM_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInternal       Code = "INTERNAL"
)

// Item is the vendor-independent result shape. Optional fields are
// pointers so "not provided" stays distinguishable from an empty string.
type Item struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Type     string  `json:"type"`
	URL      *string `json:"url,omitempty"`
	Subtitle *string `json:"subtitle,omitempty"`
}

// Error is the only failure shape crossing the connector boundary.
// It never carries tokens, codes, client secrets or vendor bodies.
type Error struct {
	Status     string         `json:"status"` // always "error"
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	RetryAfter *int           `json:"retry_after,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func NewError(code Code, msg string) *Error {
	return &Error{Status: "error", Code: code, Message: msg}
}

// HTTPStatus maps a taxonomy code onto the response status used by the
// gateway surface.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuthRequired, CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeConfigRequired:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError classifies a non-2xx vendor response. The classification is
// total: every status maps to exactly one code. Vendor bodies are never
// copied into the result; they can echo request secrets.
func MapError(status int, body []byte, header http.Header) *Error {
	e := NewError(CodeUpstream, fmt.Sprintf("vendor returned HTTP %d", status))
	switch {
	case status == http.StatusBadRequest:
		e.Code = CodeValidation
		e.Message = "vendor rejected the request"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = CodeAuthFailed
		e.Message = "vendor rejected the credentials"
	case status == http.StatusNotFound:
		e.Code = CodeNotFound
		e.Message = "vendor resource not found"
	case status == http.StatusTooManyRequests:
		e.Code = CodeRateLimited
		e.Message = "vendor rate limit exceeded"
		if ra := parseRetryAfter(header); ra != nil {
			e.RetryAfter = ra
		}
	}
	e.Details = map[string]any{"http_status": status}
	return e
}

func parseRetryAfter(header http.Header) *int {
	if header == nil {
		return nil
	}
	v := header.Get("Retry-After")
	if v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return nil
	}
	return &secs
}

// StringPtr is a convenience for optional Item fields.
func StringPtr(s string) *string { return &s }
