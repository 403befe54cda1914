// Package middleware wraps the dashboard router. Request IDs assigned here are
// forwarded to the listings backend by the API client, so they tie a page
// view to the backend calls it caused.
package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"regexp"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Context key type for request-scoped values.
type contextKey string

// RequestIDKey is the context key for request ID.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader is the HTTP header name for request ID. The same header is
// sent to the listings backend.
const RequestIDHeader = "X-Request-ID"

// validRequestID limits inbound IDs before they are echoed and forwarded.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Dashboard page, form and feed requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time to serve a dashboard request, backend calls included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "response_bytes",
			Help:      "Size of rendered dashboard responses.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Dashboard requests currently being served, open change feeds included.",
		},
	)
)

// responseWriter records the status code and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int
}

// newResponseWriter creates a new responseWriter.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code and writes the header.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write writes the response body.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Hijack implements http.Hijacker interface to support WebSocket connections.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher interface.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain creates a single middleware from multiple middlewares.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// quietPaths are logged at Debug level unless they fail: probes, scrapes and
// the assets fetched with every page.
var quietPaths = map[string]bool{
	"/health":         true,
	"/ready":          true,
	"/metrics":        true,
	"/static/app.css": true,
	"/static/app.js":  true,
}

// Logging returns a middleware that logs one entry per request. Server-side
// failures, which include backend errors surfaced as 502, log at Warn.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", normalizeRequestPath(r)),
				zap.Int("status", rw.statusCode),
				zap.Int("bytes", rw.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.String("request_id", getRequestID(r)),
			}

			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				logger.Warn("http request", fields...)
			case quietPaths[r.URL.Path]:
				logger.Debug("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// Recovery returns a middleware that turns a handler panic into a 500. A
// response that has already started is left as is. http.ErrAbortHandler is
// re-raised so net/http can drop the connection quietly.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.Bool("response_started", rw.written),
					zap.String("request_id", getRequestID(r)),
				)
				if !rw.written {
					http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// RequestID returns a middleware that assigns each request an ID, keeping a
// well-formed inbound one. The ID is set on the response, the request header
// and the context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if !validRequestID.MatchString(requestID) {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)
			r.Header.Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Metrics returns a middleware that records request counts, latency and
// response sizes per route template.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			next.ServeHTTP(rw, r)

			route := normalizeRequestPath(r)
			status := strconv.Itoa(rw.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			httpResponseBytes.WithLabelValues(route).Observe(float64(rw.bytes))
		})
	}
}

// ContentSecurityPolicy is sent with every dashboard response. Listing images
// may live on any https host, everything else is same-origin.
const ContentSecurityPolicy = "default-src 'self'; img-src 'self' https: data:; " +
	"style-src 'self'; script-src 'self'; connect-src 'self'; " +
	"base-uri 'none'; form-action 'self'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets browser hardening headers.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Content-Security-Policy", ContentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}

// getRequestID extracts the request ID from the request header.
func getRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestIDFromContext returns the request ID stored by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// normalizeRequestPath extracts the route template from the matched mux route
// to avoid high-cardinality metric labels caused by dynamic path segments.
// Falls back to the raw URL path if no route template is available.
func normalizeRequestPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
