package api

import (
	"net/http"
	"strconv"

	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrument records request metrics labelled by route pattern and logs each
// request at debug level.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		route := routePatternOrPath(r)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sr.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method, route)

		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", sr.status).
			Dur("dur", timer.Duration()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// routePatternOrPath returns the chi route pattern, or "unmatched" for
// requests no route claimed, to keep label cardinality bounded.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
