// Package server exposes recurrence expansion and the event, profile and
// import/export features over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cyp0633/recurcal/auth"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/storage"
)

const (
	// HTTP headers
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"

	// MIME types
	mimeTypeJSON     = "application/json"
	mimeTypeCalendar = "text/calendar; charset=utf-8"

	// DefaultMaxAvatarBytes bounds avatar uploads
	DefaultMaxAvatarBytes = 2 << 20
	// maxBodyBytes bounds JSON and iCalendar request bodies
	maxBodyBytes = 1 << 20
)

// Users signs people up and authenticates them
type Users interface {
	auth.Authenticator
	SignUp(ctx context.Context, email, password, confirm string) (*auth.Principal, error)
}

// Sessions issues and verifies session tokens
type Sessions interface {
	auth.TokenVerifier
	Issue(principal *auth.Principal) (string, time.Time, error)
}

// Server is the HTTP API. It implements http.Handler.
type Server struct {
	store    storage.Storage
	users    Users
	sessions Sessions
	engine   *recurrence.Engine
	metrics  *Metrics
	logger   *slog.Logger

	publicURL      string
	maxAvatarBytes int64
	authRateLimit  int
	authRateWindow time.Duration

	router chi.Router
}

// Option represents a configuration option for the Server
type Option func(*Server)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngine sets the recurrence engine used for every expansion
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Server) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithMetrics sets the metrics the server records into and serves on /metrics
func WithMetrics(metrics *Metrics) Option {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithPublicURL sets the base URL used in share links
func WithPublicURL(url string) Option {
	return func(s *Server) {
		s.publicURL = url
	}
}

// WithMaxAvatarBytes bounds avatar uploads
func WithMaxAvatarBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAvatarBytes = n
		}
	}
}

// WithAuthRateLimit bounds signup, login and Basic-authenticated requests
// per client IP
func WithAuthRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		if limit > 0 && window > 0 {
			s.authRateLimit = limit
			s.authRateWindow = window
		}
	}
}

// New creates a new API server
func New(store storage.Storage, users Users, sessions Sessions, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if users == nil || sessions == nil {
		return nil, errors.New("users and sessions are required")
	}

	s := &Server{
		store:          store,
		users:          users,
		sessions:       sessions,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		publicURL:      "http://localhost:8080",
		maxAvatarBytes: DefaultMaxAvatarBytes,
		authRateLimit:  10,
		authRateWindow: time.Minute,
	}

	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = recurrence.NewEngine()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(s.engine)
	}

	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Post("/preview", s.handlePreview)
	r.Get("/avatars/{userID}", s.handleGetAvatar)

	// Password checks share one budget per client IP
	passwordLimit := rateLimit(s.authRateLimit, s.authRateWindow)

	r.Group(func(r chi.Router) {
		r.Use(passwordLimit)
		r.Post("/signup", s.handleSignUp)
		r.Post("/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(basicAuthOnly(passwordLimit))
		r.Use(auth.Middleware(s.users, s.sessions, "recurcal", writeAuthError))

		r.Get("/profile", s.handleGetProfile)
		r.Patch("/profile", s.handlePatchProfile)
		r.Put("/profile/avatar", s.handlePutAvatar)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEvent)
				r.Delete("/", s.handleDeleteEvent)
				r.Get("/occurrences", s.handleOccurrences)
				r.Get("/export", s.handleExport)
				r.Get("/ics", s.handleICS)
				r.Get("/share", s.handleShare)
			})
		})

		r.Post("/import", s.handleImport)
		r.Post("/import/ics", s.handleImportICS)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal returns the authenticated user; routes behind auth.Middleware always have one
func principal(r *http.Request) *auth.Principal {
	return auth.GetPrincipalFromContext(r.Context())
}
