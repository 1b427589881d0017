package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/internal/importer"
	"github.com/Kerhoff/wishlister/internal/metrics"
	"github.com/Kerhoff/wishlister/internal/service"
	"github.com/Kerhoff/wishlister/internal/validate"
)

// Options configures a Server
type Options struct {
	SessionSecret      string
	SessionSecure      bool
	RateLimitPerMinute int
	Metrics            *metrics.Metrics
}

// Server provides the JSON HTTP API.
type Server struct {
	svc       *service.Service
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	sessions  *sessions.CookieStore
	rateLimit int
	router    chi.Router
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger, opts Options) *Server {
	store := sessions.NewCookieStore([]byte(opts.SessionSecret))
	store.MaxAge(sessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = opts.SessionSecure
	store.Options.SameSite = http.SameSiteLaxMode

	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}

	s := &Server{
		svc:       svc,
		logger:    logger,
		metrics:   opts.Metrics,
		sessions:  store,
		rateLimit: opts.RateLimitPerMinute,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.loadUser)

	r.Get("/healthz", s.handleHealth)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/p/{slug}", s.handlePublicWishlist)
	r.Get("/s/{token}", s.handleSharedWishlist)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.With(s.requireUser).Get("/me", s.handleMe)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/users/{id}/profile", s.handlePublicProfile)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/profile", s.handleGetProfile)
			r.Patch("/profile", s.handleUpdateProfile)
			r.With(s.limiter()).Get("/enrich", s.handleEnrich)
		})

		r.Route("/wishlists", func(r chi.Router) {
			r.With(s.requireUser).Get("/", s.handleListWishlists)
			r.With(s.requireUser).Post("/", s.handleCreateWishlist)
			r.With(s.requireUser).Get("/shared", s.handleListShared)

			r.Route("/{slug}", func(r chi.Router) {
				// anonymous visitors may read public wishlists
				r.Get("/", s.handleGetWishlist)

				r.Group(func(r chi.Router) {
					r.Use(s.requireUser)

					r.Patch("/", s.handleUpdateWishlist)
					r.Delete("/", s.handleDeleteWishlist)

					r.Post("/share", s.handleShare)
					r.Delete("/share", s.handleRevokeShare)

					r.Get("/access", s.handleListAccess)
					r.Put("/access", s.handleGrantAccess)
					r.Delete("/access/{userID}", s.handleRevokeAccess)

					r.Post("/items", s.handleCreateItem)
					r.Patch("/items/{itemSlug}", s.handleUpdateItem)
					r.Delete("/items/{itemSlug}", s.handleDeleteItem)

					r.Group(func(r chi.Router) {
						r.Use(s.limiter())
						r.Post("/import/bulk", s.handleBulkImport)
						r.Post("/import/csv", s.handleUploadCSV)
						r.Post("/import/csv/{jobID}", s.handleMapCSV)
					})
				})
			})
		})
	})
}

// limiter throttles the endpoints that fan out to third-party sites
func (s *Server) limiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.rateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
	)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

type errorResponse struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// respondServiceError maps a service error onto a status code. Policy
// denials answer 404 so private wishlists stay invisible.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *validate.Errors
	switch {
	case errors.As(err, &verr):
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Errors: verr.Fields})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrJobNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrDuplicateTitle):
		s.respondJSON(w, http.StatusConflict, errorResponse{
			Error:  err.Error(),
			Errors: map[string][]string{"title": {err.Error()}},
		})
	case errors.Is(err, service.ErrEmailTaken):
		s.respondJSON(w, http.StatusConflict, errorResponse{
			Error:  err.Error(),
			Errors: map[string][]string{"email": {err.Error()}},
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrEmptyUpload), errors.Is(err, importer.ErrInvalidCSV):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts an integer path value.
func pathID(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", key)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
