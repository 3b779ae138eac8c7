package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/icheer/qwenchat2api/pkg/proxy"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
)

// Recovery recovers from handler panics, logs the stack, and returns
// an opaque 500 body. Internal details never reach the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				proxy.WriteErrorResponse(w, types.NewServerError(
					"an internal error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
