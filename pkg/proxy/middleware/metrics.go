package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives per-request measurements.
type RequestRecorder interface {
	RecordRequest(endpoint string, status int, duration time.Duration)
}

// Metrics records request counts and latencies per endpoint.
func Metrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			recorder.RecordRequest(r.URL.Path, status, time.Since(start))
		})
	}
}
