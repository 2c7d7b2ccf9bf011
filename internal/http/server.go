package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spendigo/internal/ledger"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
	"spendigo/internal/middleware/auth"
	"spendigo/internal/middleware/ratelimit"
	"spendigo/internal/middleware/security"
	"spendigo/internal/middleware/trace"
	"spendigo/internal/session"
)

// Deps are the collaborators the API server is built from.
type Deps struct {
	Ledger   ledger.Ledger
	Sessions *session.Manager
	// Ready backs /readyz; nil always reports ready.
	Ready func(ctx context.Context) error
	// AuthSecret verifies bearer tokens. Empty trusts the X-User-ID header.
	AuthSecret string
	// PostLimit is the per-client POST quota per minute; 0 disables it.
	PostLimit int
	Logger    *log.Logger
	Clock     func() time.Time
}

type Server struct {
	http.Server
	ledger      ledger.Ledger
	sessions    *session.Manager
	ready       func(ctx context.Context) error
	clock       func() time.Time
	logger      *log.Logger
	detector    *security.Detector
	postLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Server{
		ledger:   deps.Ledger,
		sessions: deps.Sessions,
		ready:    deps.Ready,
		clock:    clock,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(logger),
	}
	if deps.PostLimit > 0 {
		s.postLimiter = ratelimit.NewLimiter(ratelimit.Config{
			Requests: deps.PostLimit,
			Window:   time.Minute,
			Clock:    clock,
		})
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return chimw.GetReqID(r.Context())
	}))
	r.Use(trace.NewMiddleware(logger, s.detector.ClientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(deps.AuthSecret, logger, s.authFailed))
		r.Use(s.tagUser)
		if s.postLimiter != nil {
			r.Use(s.limitPosts)
		}

		r.Get("/categories", s.handleCategories)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Get("/{id}", s.handleGetSource)
			r.Post("/{id}/deposit", s.handleDeposit)
			r.Post("/{id}/deactivate", s.handleDeactivateSource)
			r.Get("/{id}/history", s.handleSourceHistory)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", s.handleListExpenses)
			r.Post("/", s.handleCreateExpense)
			r.Patch("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Post("/voice/extract", s.handleVoiceExtract)
		r.Delete("/session", s.handleCloseSession)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter, closes every open session and shuts the
// HTTP server down. Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.postLimiter != nil {
			s.postLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
		if s.sessions != nil {
			s.sessions.CloseAll()
		}
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	msg := "authentication required"
	if !errors.Is(err, auth.ErrMissingToken) {
		msg = "invalid token"
	}
	UnauthorizedError(msg).Write(w)
}

// tagUser adds the authenticated user to the request logger.
func (s *Server) tagUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.FromContext(r.Context()).With(log.FieldUserID, auth.UserFrom(r.Context()))
		next.ServeHTTP(w, r.WithContext(log.WithLogger(r.Context(), logger)))
	})
}

// limitPosts applies the per-client quota to POST requests only.
func (s *Server) limitPosts(next http.Handler) http.Handler {
	limited := s.postLimiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRateLimited.Inc()
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldComponent, log.ComponentRateLimit,
			log.FieldClientIP, s.detector.ClientIP(r),
			log.FieldErrorType, log.ErrorTypeRateLimit)
		TooManyRequestsError("rate limit exceeded, please try again later").Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// session opens the caller's session, writing the error response itself
// when that fails.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Open(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}
