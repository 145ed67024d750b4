package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tutorly/tutorly-backend/internal/account"
	"github.com/tutorly/tutorly-backend/internal/catalog"
	"github.com/tutorly/tutorly-backend/internal/config"
	"github.com/tutorly/tutorly-backend/internal/db"
	"github.com/tutorly/tutorly-backend/internal/identity"
	"github.com/tutorly/tutorly-backend/internal/logging"
	"github.com/tutorly/tutorly-backend/internal/middleware"
	"github.com/tutorly/tutorly-backend/internal/scheduling"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg := config.MustLoad(configPath)

	logger := logging.New(cfg.Log.Environment)
	defer logger.Sync()

	conn, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Connected to database")

	if err := account.Init(conn); err != nil {
		logger.Fatal("Failed to init accounts module", zap.Error(err))
	}
	if err := catalog.Init(conn); err != nil {
		logger.Fatal("Failed to init catalog module", zap.Error(err))
	}
	if err := scheduling.Init(conn); err != nil {
		logger.Fatal("Failed to init scheduling module", zap.Error(err))
	}

	verifier := identity.NewVerifier(cfg.Supabase.JWTSecret)
	provider := identity.NewClient(cfg.Supabase)

	accountService := account.NewService(conn, provider, logger)
	accountHandler := account.NewHandler(accountService)

	schedulingStore := scheduling.NewGormStore(conn)
	lifecycle := scheduling.NewManager(schedulingStore, logger)
	schedulingHandler := scheduling.NewHandler(lifecycle)

	catalogStore := catalog.NewGormStore(conn, scheduling.SessionRefs)
	reconciler := catalog.NewReconciler(catalogStore, logger)
	catalogHandler := catalog.NewHandler(reconciler, catalogStore)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Mount("/auth", account.SetupRoutes(accountHandler, verifier))
	r.Mount("/catalog", catalog.SetupRoutes(catalogHandler, verifier))
	r.Mount("/sessions", scheduling.SetupRoutes(schedulingHandler, verifier))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server listening", zap.String("addr", cfg.Server.Addr()))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
