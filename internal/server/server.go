// Package server wires the application together: database, services,
// handlers, routes, and the HTTP server lifecycle.
//
// This is the composition root: every dependency is constructed and
// connected here, and each layer only receives what it needs: services get
// repository interfaces, handlers get services.
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

	"github.com/sakif/study-assistant/internal/auth"
	"github.com/sakif/study-assistant/internal/config"
	"github.com/sakif/study-assistant/internal/handler"
	"github.com/sakif/study-assistant/internal/middleware"
	sqliteRepo "github.com/sakif/study-assistant/internal/repository/sqlite"
	"github.com/sakif/study-assistant/internal/service"
)

// Server holds the router and the resources it owns. The database
// connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server and assembles the full dependency graph.
//
// A missing JWT secret is not fatal: the server starts with a nil token
// service, and the handlers report the configuration fault on the flows
// that need to sign.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
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

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware, constructs the handler graph, and
// registers the route table:
//
//	GET    /                        health message
//	POST   /auth/register           local registration
//	POST   /auth/login              local login
//	GET    /auth/{provider}         redirect to provider consent
//	GET    /auth/{provider}/callback  complete federated sign-in
//	GET    /api/user/profile        own profile            (auth)
//	GET    /api/admin/users         list users             (auth+admin)
//	DELETE /api/admin/users/{id}    delete user            (auth+admin)
//	GET    /api/admin/stats         aggregate counts       (auth+admin)
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// The SPA runs on its own origin and sends the bearer token in a
	// header, so its origin(s) must be allow-listed explicitly.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Token service is optional at startup; nil disables issuance.
	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set; token issuance unavailable, OAuth callbacks will report server_config_error")
	}

	passwords := auth.NewPasswordService()
	credentials := service.NewCredentialService(s.db, passwords, s.logger)
	linker := service.NewIdentityLinker(s.db, s.logger)

	providers := []auth.Provider{
		auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL(),
		),
		auth.NewGitHubProvider(
			s.config.GithubClientID,
			s.config.GithubClientSecret,
			s.config.GithubCallbackURL(),
		),
	}

	authHandler := handler.NewAuthHandler(credentials, linker, tokens, providers, s.config.FrontendURL, s.logger)
	userHandler := handler.NewUserHandler(s.db, s.logger)
	adminHandler := handler.NewAdminHandler(s.db, s.logger)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Study Assistant API is running..."))
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/{provider}", authHandler.HandleOAuthLogin)
		r.Get("/{provider}/callback", authHandler.HandleOAuthCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/user/profile", userHandler.HandleProfile)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(s.db))
			r.Get("/users", adminHandler.HandleListUsers)
			r.Delete("/users/{id}", adminHandler.HandleDeleteUser)
			r.Get("/stats", adminHandler.HandleStats)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests (30s),
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("frontend", s.config.FrontendURL),
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
