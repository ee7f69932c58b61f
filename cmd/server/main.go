package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/userdesk/backend/internal/auth"
	"github.com/userdesk/backend/internal/config"
	"github.com/userdesk/backend/internal/gemini"
	"github.com/userdesk/backend/internal/handlers"
	"github.com/userdesk/backend/internal/logging"
	appMiddleware "github.com/userdesk/backend/internal/middleware"
	"github.com/userdesk/backend/internal/services"
	"github.com/userdesk/backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	provider := buildProvider(cfg)

	// Services
	registrationService := services.NewRegistrationService(provider, st, logger)
	profileService := services.NewProfileService(st, logger)
	directoryService := services.NewDirectoryService(st, logger)
	if err := directoryService.Start(ctx); err != nil {
		logger.Error("directory subscription failed", "error", err)
		os.Exit(1)
	}
	defer directoryService.Stop()

	// Handlers
	authHandler := handlers.NewAuthHandler(provider, registrationService, profileService, cfg, logger)
	profileHandler := handlers.NewProfileHandler(profileService, cfg.MaxAvatarSizeKB, logger)
	directoryHandler := handlers.NewDirectoryHandler(directoryService, logger)
	askHandler := handlers.NewAskHandler(gemini.NewClient(cfg.GeminiAPIKey), logger)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK (directory: %s)", directoryService.View().State())
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(cfg.JWTSecret))

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.SaveProfile)
				r.Delete("/", profileHandler.DeleteProfile)
				r.Post("/avatar", profileHandler.UploadAvatar)
			})

			r.Post("/ask", askHandler.Ask)

			// Admin-only directory management
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", directoryHandler.ListUsers)
					r.Post("/", directoryHandler.CreateUser)
					r.Get("/watch", directoryHandler.WatchUsers)

					r.Route("/{userId}", func(r chi.Router) {
						r.Put("/", directoryHandler.UpdateUser)
						r.Delete("/", directoryHandler.DeleteUser)
					})
				})
			})
		})
	})

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.ServerAddress, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStore builds the configured document store backend and a close func.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fs, err := store.NewFirestore(ctx, store.FirestoreConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	case config.StoreMongo:
		mg, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		return mg, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mg.Close(closeCtx)
		}, nil
	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildProvider picks the identity provider: the real Identity Toolkit when an
// API key is configured, the in-memory one otherwise (local development).
func buildProvider(cfg *config.Config) auth.Provider {
	if cfg.IdentityAPIKey != "" {
		return auth.NewIdentityToolkit(cfg.IdentityAPIKey)
	}
	return auth.NewMemoryProvider()
}
