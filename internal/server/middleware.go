package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
)

const requestIDHeader = "X-Request-ID"

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crashcheck_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crashcheck_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crashcheck_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})

	httpRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashcheck_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})

	httpBusyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashcheck_http_busy_total",
		Help: "Check requests refused because every worker was busy",
	})
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware adds a unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, requestID)
		r.Header.Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware tracks request metrics by route template.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		// Don't track metrics for health endpoints
		if path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		status := strconv.Itoa(rw.status)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration.Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()

		s.logger.Debug("request completed",
			"request_id", r.Header.Get(requestIDHeader),
			"method", r.Method,
			"path", path,
			"status", rw.status,
			"duration_ms", duration.Milliseconds())
	})
}

// rateLimitMiddleware rejects requests once the token bucket is empty.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			httpRateLimitedTotal.Inc()
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, http.StatusTooManyRequests, cerrors.CodeInternal, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					"error", err,
					"request_id", r.Header.Get(requestIDHeader),
					"method", r.Method,
					"path", r.URL.Path)
				s.writeError(w, r, http.StatusInternalServerError, cerrors.CodeInternal, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
