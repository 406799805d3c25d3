package weather

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes failures raised by an UpstreamClient.
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindNotFound        ErrorKind = "city_not_found"
	KindRateLimited     ErrorKind = "rate_limit"
	KindTransport       ErrorKind = "api_request"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// UpstreamError is the single error type surfaced for upstream failures.
// StatusCode is an HTTP-like class used by the presentation layer only.
type UpstreamError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Context    map[string]any
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newUpstreamError(kind ErrorKind, status int, msg string, ctx map[string]any, cause error) *UpstreamError {
	merged := map[string]any{"error_type": string(kind)}
	for k, v := range ctx {
		merged[k] = v
	}
	return &UpstreamError{
		Kind:       kind,
		Message:    msg,
		StatusCode: status,
		Context:    merged,
		Err:        cause,
	}
}

// ErrAPIKeyMissing is raised when a client is built without credentials.
func ErrAPIKeyMissing() *UpstreamError {
	return newUpstreamError(KindConfiguration, http.StatusInternalServerError,
		"Weather API key is not configured", nil, nil)
}

func NewNotFoundError(city string) *UpstreamError {
	return newUpstreamError(KindNotFound, http.StatusNotFound,
		fmt.Sprintf("City %q not found", city), map[string]any{"city": city}, nil)
}

func NewRateLimitedError(ctx map[string]any) *UpstreamError {
	return newUpstreamError(KindRateLimited, http.StatusTooManyRequests,
		"Weather API rate limit exceeded", ctx, nil)
}

// NewTransportError covers network failures, timeouts and unexpected HTTP statuses.
func NewTransportError(msg string, ctx map[string]any, cause error) *UpstreamError {
	return newUpstreamError(KindTransport, http.StatusServiceUnavailable,
		fmt.Sprintf("Weather API request failed: %s", msg), ctx, cause)
}

func NewInvalidResponseError(reason string, ctx map[string]any, cause error) *UpstreamError {
	return newUpstreamError(KindInvalidResponse, http.StatusBadGateway,
		fmt.Sprintf("Invalid response from Weather API: %s", reason), ctx, cause)
}

// AsUpstreamError unwraps err into an *UpstreamError if it carries one.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsKind reports whether err is an UpstreamError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ue, ok := AsUpstreamError(err)
	return ok && ue.Kind == kind
}
