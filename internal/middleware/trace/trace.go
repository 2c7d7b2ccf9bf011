// Package trace logs and measures every HTTP request.
package trace

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	requests  *log.StructuredLogger
}

// NewMiddleware creates the tracer. extractIP resolves the client address
// logged with each request; nil logs RemoteAddr.
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	if extractIP == nil {
		extractIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &Middleware{
		extractIP: extractIP,
		requests:  log.NewStructuredLogger(logger.WithComponent(log.ComponentHTTP)),
	}
}

// Middleware records the status and latency of each request under its
// route pattern and logs its completion.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.ObserveHTTP(r.Method, routePattern(r), strconv.Itoa(status), elapsed)
		m.requests.LogHTTPEnd(r.Context(), r, status, elapsed.Milliseconds(), m.extractIP(r))
	})
}

// routePattern keeps metric cardinality bounded by labelling with the
// matched chi pattern rather than the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
