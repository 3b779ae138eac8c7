package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/icheer/qwenchat2api/pkg/proxy"
	"github.com/icheer/qwenchat2api/pkg/proxy/types"
)

// AdminAuth protects the admin endpoints with a static API key,
// accepted as "Authorization: Bearer <key>". An empty configured key
// disables the check.
func AdminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				proxy.WriteErrorResponse(w, types.NewErrorResponse(
					"invalid admin credentials",
					types.ErrorTypeAuthentication,
					"",
					"",
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
