package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/icheer/qwenchat2api/pkg/credential"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
	"github.com/icheer/qwenchat2api/pkg/upstream"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// WriteErrorResponse writes a prepared error body with the status its
// type implies.
func WriteErrorResponse(w http.ResponseWriter, resp *types.ErrorResponse) {
	WriteJSON(w, resp.Error.HTTPStatusCode(), resp)
}

// WriteError maps a failure to its OpenAI-compatible body and writes
// it. Exhausted credentials yield 503, upstream rejections forward the
// upstream's status, upstream outages yield 502, and everything else
// is an opaque 500.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var authErr *upstream.AuthError
	var upErr *upstream.UpstreamError

	switch {
	case errors.Is(err, credential.ErrNoCredential):
		logger.Warn("rejecting request, credential pool exhausted")
		WriteErrorResponse(w, types.NewServiceUnavailableError(
			"no valid credentials available"))

	case errors.As(err, &authErr):
		logger.Warn("upstream rejected credentials",
			"status", authErr.StatusCode,
		)
		message := authErr.Body
		if message == "" {
			message = "upstream rejected the request"
		}
		resp := types.NewErrorResponse(
			message,
			types.ErrorTypeAuthentication,
			"",
			types.CodeUpstreamError,
		)
		// Forward the upstream's own status rather than the 401 the
		// type would imply.
		WriteJSON(w, authErr.StatusCode, resp)

	case errors.As(err, &upErr):
		logger.Error("upstream failure",
			"status", upErr.StatusCode,
			"error", err,
		)
		WriteErrorResponse(w, types.NewBadGatewayError(
			"upstream service unavailable"))

	default:
		logger.Error("request failed", "error", err)
		WriteErrorResponse(w, types.NewServerError("internal server error"))
	}
}

// NewSSEWriter prepares w for server-sent events and returns a writer
// that flushes after every write. Returns an error body to the client
// and false if the connection cannot stream.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorResponse(w, types.NewServerError("streaming unsupported by connection"))
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, true
}

// SSEWriter writes pre-framed SSE bytes and flushes each write so
// chunks reach the client without transport buffering.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Write sends raw SSE bytes to the client. Empty writes are dropped.
func (s *SSEWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
