package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TrestonSMC/dozers-site/internal/config"
	appLog "github.com/TrestonSMC/dozers-site/internal/log"
	"github.com/TrestonSMC/dozers-site/internal/menu"
	"github.com/TrestonSMC/dozers-site/internal/model"
	"github.com/TrestonSMC/dozers-site/internal/reviews"
	"github.com/TrestonSMC/dozers-site/internal/submission"
)

// EventsProvider builds the public event list. Implementations must not
// fail; an empty list is a valid answer.
type EventsProvider interface {
	Aggregate(ctx context.Context) []model.PublicEvent
}

type MenuFetcher interface {
	Fetch(ctx context.Context) ([]menu.Category, error)
}

type ReviewsFetcher interface {
	Fetch(ctx context.Context) ([]reviews.Review, error)
}

type GalleryLister interface {
	Images(ctx context.Context) ([]string, error)
}

type Mailer interface {
	Send(ctx context.Context, f submission.Form) (string, error)
}

// Deps groups what the router needs. Nil members degrade their route
// rather than failing startup.
type Deps struct {
	Events  EventsProvider
	Menu    MenuFetcher
	Reviews ReviewsFetcher
	Gallery GalleryLister
	Mailer  Mailer

	// SubmitLimiter throttles POST /api/submit-event per client IP.
	SubmitLimiter *RateLimiter

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Server provides the site's JSON API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/events-feed", s.handleEvents)
	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/menu", s.handleMenu)
		r.Get("/reviews", s.handleReviews)
		r.Get("/gallery", s.handleGallery)

		r.Group(func(r chi.Router) {
			if s.deps.SubmitLimiter != nil {
				r.Use(s.deps.SubmitLimiter.Middleware())
			}
			r.Post("/submit-event", s.handleSubmitEvent)
		})
	})

	if s.deps.Metrics != nil {
		var h http.Handler = s.deps.Metrics
		if s.metricsAuthEnabled() {
			appLog.Info("metrics basic auth enabled")
			h = s.basicAuthMiddleware(h)
		}
		r.Method(http.MethodGet, "/metrics", h)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
