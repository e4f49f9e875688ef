package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/todoapi/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Collect request duration by route pattern
// Has to wrap http.ServeMux directly: the mux sets matched pattern to the request it gets
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			statusClass := fmt.Sprintf("%dxx", rec.status/100)

			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, route, statusClass).Observe(time.Since(start).Seconds())
		})
	}
}
