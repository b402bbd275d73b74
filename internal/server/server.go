// Package server wires the router, middleware and handlers together and
// owns the HTTP server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/streamhub/internal/auth"
	"github.com/sakif/streamhub/internal/config"
	"github.com/sakif/streamhub/internal/handler"
	"github.com/sakif/streamhub/internal/middleware"
	sqliteRepo "github.com/sakif/streamhub/internal/repository/sqlite"
	"github.com/sakif/streamhub/internal/service"
	"github.com/sakif/streamhub/internal/storage"
)

// Server holds the router and the resources it owns. The database
// connection is closed during shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain: store → services → handlers →
// routes. The uploader is injected so tests can swap in a fake.
func New(cfg *config.Config, uploader storage.Uploader, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(uploader); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(uploader storage.Uploader) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Credentialed CORS: cookies only flow cross-origin when the origin is
	// echoed back, so a wildcard origin with credentials is rejected by
	// browsers. Configure CORS_ORIGIN explicitly in production.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	tokens, err := auth.NewTokenService(
		s.config.AccessTokenSecret,
		s.config.RefreshTokenSecret,
		s.config.AccessTokenTTL,
		s.config.RefreshTokenTTL,
	)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	authService := service.NewAuthService(s.db, tokens, passwords, uploader, s.config.UploadTimeout, s.logger)
	profileService := service.NewProfileService(s.db, s.db, uploader, s.config.UploadTimeout, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.AccessTokenTTL, s.config.RefreshTokenTTL, s.logger)
	userHandler := handler.NewUserHandler(profileService, s.logger)

	requireAuth := auth.RequireAuth(tokens, s.db)
	optionalAuth := auth.OptionalAuth(tokens, s.db)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh-token", authHandler.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/change-password", authHandler.HandleChangePassword)
			r.Get("/current-user", authHandler.HandleCurrentUser)
			r.Patch("/update-account", userHandler.HandleUpdateAccount)
			r.Patch("/update-avatar", userHandler.HandleUpdateAvatar)
			r.Patch("/update-cover-image", userHandler.HandleUpdateCoverImage)
			r.Get("/watch-history", userHandler.HandleWatchHistory)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/channel/{username}", userHandler.HandleChannelProfile)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully,
// giving in-flight requests 30 seconds to complete.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
