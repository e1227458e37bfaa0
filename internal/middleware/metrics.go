package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dvmap-service/internal/metrics"
)

// Metrics считает запросы по шаблону маршрута chi (а не по сырому пути).
func Metrics(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{w: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		})
	}
}
