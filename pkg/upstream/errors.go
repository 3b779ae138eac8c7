package upstream

import "fmt"

// AuthError is an upstream 4xx response. The orchestrator treats it as
// a credential-health signal and invalidates the credentials used, then
// forwards the status and body to the caller unchanged.
type AuthError struct {
	// StatusCode is the upstream HTTP status (400-499).
	StatusCode int

	// Body is the upstream response body, forwarded verbatim.
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", e.StatusCode)
}

// UpstreamError is an upstream 5xx response or a transport failure.
// It indicates upstream trouble, not credential trouble; credentials
// are not invalidated for it.
type UpstreamError struct {
	// StatusCode is the upstream HTTP status, or 0 for transport
	// failures.
	StatusCode int

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}
