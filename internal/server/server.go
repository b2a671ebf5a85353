// Package server is the composition root: it opens the database, builds the
// services and handlers, and maps routes to them.
//
// Dependency flow:
//
//	config.Config → sqlite.DB → session.Manager, service.AuthService
//	              → handler.{Auth,Food,Ledger,Profile}Handler → chi routes
//
// Handlers never touch the database, and services never touch HTTP.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/fitai/internal/auth"
	"github.com/sakif/fitai/internal/catalog"
	"github.com/sakif/fitai/internal/config"
	"github.com/sakif/fitai/internal/handler"
	"github.com/sakif/fitai/internal/middleware"
	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/realtime"
	sqliteRepo "github.com/sakif/fitai/internal/repository/sqlite"
	"github.com/sakif/fitai/internal/service"
	"github.com/sakif/fitai/internal/session"
)

// Server owns the router and the database connection, which is closed when
// Start returns.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *session.Manager
	hub      *realtime.Hub
}

// New opens the database and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
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

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
//	GET    /healthz
//	GET    /auth/github/login, /auth/github/callback
//	POST   /auth/signup, /auth/login, /auth/logout
//	GET    /api/me
//	GET    /api/foods?q=
//	GET    /api/ledger                       snapshot
//	POST   /api/ledger/entries               add entry
//	DELETE /api/ledger/entries/{id}          remove entry
//	GET    /api/ledger/meals/{slot}
//	GET    /api/ledger/progress/{nutrient}
//	POST   /api/ledger/water
//	GET    /api/ledger/stream                websocket
//	GET/POST/PATCH/PUT /api/profile
//	POST   /api/profile/refresh
//	GET/POST /api/profile/edit
//	PATCH  /api/profile/edit/draft
//	POST   /api/profile/edit/save, /api/profile/edit/cancel
//
// Middleware order matters: RequestID must run before Logger so the log
// line carries the id, and Recoverer sits inside Logger so a panic still
// logs as a 500.
func (s *Server) setupRoutes() error {
	secret := s.config.JWTSecret
	if !s.config.AuthEnabled() {
		secret = rand.Text()
		s.logger.Warn("JWT_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	validate := model.NewValidator()
	s.sessions = session.NewManager(s.db, validate, s.logger,
		session.WithWaterTarget(s.config.WaterTargetGlasses),
	)
	accounts := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	s.hub = realtime.NewHub(s.logger)
	foods := catalog.New()

	github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	if !github.Enabled() {
		s.logger.Info("GitHub OAuth not configured; only password sign-in is available")
	}

	authHandler := handler.NewAuthHandler(github, tokens, accounts, s.sessions, s.logger)
	foodHandler := handler.NewFoodHandler(foods)
	ledgerHandler := handler.NewLedgerHandler(s.sessions, foods, s.config.Targets, s.hub, s.config.AllowedOrigins, s.logger)
	profileHandler := handler.NewProfileHandler(s.sessions)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Get("/foods", foodHandler.HandleSearch)

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", ledgerHandler.HandleSnapshot)
			r.Post("/entries", ledgerHandler.HandleAddEntry)
			r.Delete("/entries/{id}", ledgerHandler.HandleRemoveEntry)
			r.Get("/meals/{slot}", ledgerHandler.HandleMeal)
			r.Get("/progress/{nutrient}", ledgerHandler.HandleProgress)
			r.Post("/water", ledgerHandler.HandleWater)
			r.Get("/stream", ledgerHandler.HandleStream)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profileHandler.HandleGet)
			r.Post("/", profileHandler.HandleCreate)
			r.Patch("/", profileHandler.HandleUpdate)
			r.Put("/", profileHandler.HandleUpsert)
			r.Post("/refresh", profileHandler.HandleRefresh)
			r.Get("/edit", profileHandler.HandleEditorView)
			r.Post("/edit", profileHandler.HandleBeginEdit)
			r.Patch("/edit/draft", profileHandler.HandleUpdateDraft)
			r.Post("/edit/save", profileHandler.HandleSave)
			r.Post("/edit/cancel", profileHandler.HandleCancel)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// Shutdown does not track hijacked connections.
	srv.RegisterOnShutdown(s.hub.CloseAll)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
