package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sameera/osem-ladders-sub001/internal/config"
	"github.com/sameera/osem-ladders-sub001/internal/ladder"
	"github.com/sameera/osem-ladders-sub001/internal/services"
	"github.com/sameera/osem-ladders-sub001/internal/storage"
)

var timeNow = time.Now

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	repo           storage.Repository
	ladders        *ladder.Loader
	registry       *services.Registry
	hub            *Hub
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	repo storage.Repository,
	ladders *ladder.Loader,
	registry *services.Registry,
	hub *Hub,
) *Server {
	s := &Server{
		config:         cfg,
		repo:           repo,
		ladders:        ladders,
		registry:       registry,
		hub:            hub,
		authMiddleware: NewAuthMiddleware(cfg.APIKey),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.Route("/ladders", func(r chi.Router) {
			r.With(middleware.Timeout(30*time.Second)).Get("/", s.handleListLadders)
			r.With(middleware.Timeout(30*time.Second)).Get("/{id}", s.handleGetLadder)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Get("/", s.handleListReports)
				r.Post("/", s.handleCreateReport)
				r.Get("/{id}", s.handleGetReport)
				r.Put("/{id}", s.handleUpdateReport)
				r.Post("/{id}/submit", s.handleSubmitReport)
				r.Get("/{id}/completion", s.handleReportCompletion)
			})

			// long-lived; no request timeout
			r.Get("/{id}/watch", s.handleWatchReport)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
