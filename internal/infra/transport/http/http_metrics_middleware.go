package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-users/internal/infra/metrics"
)

// unmatchedRoute labels requests no route matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records request duration by method, route pattern and status.
// It must be installed on a chi router (Use) so the matched pattern is known.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := NewStatusRecorder(w)

		next.ServeHTTP(sr, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.RecordHTTPRequest(r.Method, route, sr.StatusCode, time.Since(start))
	})
}
