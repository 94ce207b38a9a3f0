// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and it owns the database connection.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New creates:
//	  sqlite.DB → PostService / LikeService / AuthService
//	  avatar.Generator + sqlite.DB → avatar.Store
//	  services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/avatar"
	"github.com/sakif/indie-arcade/internal/config"
	"github.com/sakif/indie-arcade/internal/handler"
	"github.com/sakif/indie-arcade/internal/middleware"
	sqliteRepo "github.com/sakif/indie-arcade/internal/repository/sqlite"
	"github.com/sakif/indie-arcade/internal/service"
)

// avatarURLPrefix is where AVATAR_DIR is served and what avatar
// references point at.
const avatarURLPrefix = "/avatars"

// staticURLPrefix is where STATIC_DIR is served.
const staticURLPrefix = "/static"

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained, so in-flight requests never see a closed database.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
}

// New creates a Server from cfg.
//
// When cfg.JWTSecret is empty a random per-process secret is generated and
// a warning is logged: sessions then end on every restart.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return nil, fmt.Errorf("generating JWT secret: %w", err)
		}
		logger.Warn("JWT_SECRET not set, using a per-process secret; sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
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

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                     → feed (optional auth)
//	GET    /profile              → profile (auth)
//	GET    /me                   → current user (auth)
//	POST   /posts                → create post (auth, rate limited)
//	POST   /like/{id}            → toggle like (auth, rate limited)
//	POST   /delete/{id}          → delete own post (auth)
//	DELETE /posts/{id}           → delete own post (auth)
//	GET    /avatar/{username}    → avatar PNG (get-or-create)
//	GET    /avatars/*            → cached avatar files
//	GET    /static/*             → files under STATIC_DIR (CSS, JS, images)
//	GET    /auth/google[/callback] (oauth mode)
//	GET|POST /registerUsername   (oauth mode)
//	POST   /register, /login     (local mode)
//	GET|POST /logout
//	GET    /emojis               → emoji proxy
//	GET    /metrics, /healthz
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID  assigns a unique ID to each request
// 2. RealIP     extracts the client IP from proxy headers (rate limiter key)
// 3. Recoverer  turns panics into 500s
// 4. Logger     logs and records metrics for each request
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Services ===
	postService := service.NewPostService(s.db, s.db, s.logger)
	likeService := service.NewLikeService(s.db, s.logger)
	authService := service.NewAuthService(s.db, s.tokens, s.logger)

	// === Handlers ===
	postHandler := handler.NewPostHandler(postService, likeService, authService, s.logger)

	generator, err := avatar.NewGenerator()
	if err != nil {
		return fmt.Errorf("loading avatar font: %w", err)
	}
	avatarStore := avatar.NewStore(generator, s.db, s.config.AvatarDir, avatarURLPrefix, s.logger)
	avatarHandler := handler.NewAvatarHandler(avatarStore, s.logger)

	emojiHandler, err := handler.NewEmojiHandler(nil, s.config.Emoji.APIURL, s.config.Emoji.APIKey, s.logger)
	if err != nil {
		return err
	}

	var provider handler.IdentityProvider
	if s.config.AuthMode == config.AuthModeOAuth {
		provider = auth.NewGoogleProvider(
			s.config.Google.ClientID,
			s.config.Google.ClientSecret,
			s.config.Google.CallbackURL,
		)
	}
	authHandler := handler.NewAuthHandler(provider, authService, s.logger)

	limiter := middleware.NewRateLimiter(s.config.Limit.RPS, s.config.Limit.Burst, s.logger)
	requireAuth := auth.RequireAuth(s.tokens)

	// === Operational ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	// === Static files ===
	s.router.Handle(staticURLPrefix+"/*", fileServer(staticURLPrefix, s.config.StaticDir))
	s.router.Handle(avatarURLPrefix+"/*", fileServer(avatarURLPrefix, s.config.AvatarDir))

	// === Public pages ===
	s.router.With(auth.OptionalAuth(s.tokens)).Get("/", postHandler.HandleFeed)
	s.router.Get("/avatar/{username}", avatarHandler.HandleAvatar)
	s.router.Get("/emojis", emojiHandler.HandleEmojis)

	// === Auth ===
	if provider != nil {
		s.router.Get("/auth/google", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		s.router.Get("/registerUsername", authHandler.HandleRegisterPrompt)
		s.router.With(limiter.Middleware).Post("/registerUsername", authHandler.HandleRegisterUsername)
	} else {
		s.router.With(limiter.Middleware).Post("/register", authHandler.HandleLocalRegister)
		s.router.With(limiter.Middleware).Post("/login", authHandler.HandleLocalLogin)
	}
	s.router.Get("/logout", authHandler.HandleLogout)
	s.router.Post("/logout", authHandler.HandleLogout)

	// === Signed-in routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/profile", postHandler.HandleProfile)
		r.Get("/me", authHandler.HandleMe)
		r.Post("/delete/{id}", postHandler.HandleDelete)
		r.Delete("/posts/{id}", postHandler.HandleDelete)

		// RequireAuth runs first so the limiter keys on the user, not the IP.
		r.With(limiter.Middleware).Post("/posts", postHandler.HandleCreate)
		r.With(limiter.Middleware).Post("/like/{id}", postHandler.HandleLike)
	})

	s.logger.Info("routes configured", slog.String("authMode", s.config.AuthMode))
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

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
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
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

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
