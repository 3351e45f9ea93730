package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	lrhttp "github.com/litrev/litrev/internal/adapter/http"
	lrnats "github.com/litrev/litrev/internal/adapter/nats"
	lrotel "github.com/litrev/litrev/internal/adapter/otel"
	"github.com/litrev/litrev/internal/adapter/postgres"
	"github.com/litrev/litrev/internal/adapter/ristretto"
	"github.com/litrev/litrev/internal/adapter/ws"
	"github.com/litrev/litrev/internal/config"
	"github.com/litrev/litrev/internal/logger"
	"github.com/litrev/litrev/internal/middleware"
	"github.com/litrev/litrev/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Telemetry ---
	if cfg.Telemetry.Enabled {
		shutdown, err := lrotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("otel shutdown", "error", err)
			}
		}()
	}

	metrics, err := lrotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := lrnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	policyCache, err := ristretto.New(cfg.Cache.MaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer policyCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	eventStore := postgres.NewEventStore(store)

	authSvc := service.NewAuthService(store, &cfg.Auth)
	projectSvc := service.NewProjectService(store, policyCache, cfg.Cache.PolicyTTL)
	screeningSvc := service.NewScreeningService(store, projectSvc, eventStore, queue, hub, metrics)
	queueSvc := service.NewQueueService(store, projectSvc)
	conflictSvc := service.NewConflictService(store, projectSvc, screeningSvc, hub, metrics)
	calibrationSvc := service.NewCalibrationService(store, projectSvc, screeningSvc, hub, metrics)
	progressSvc := service.NewProgressService(store, projectSvc, screeningSvc, hub)

	handlers := lrhttp.NewHandlers(authSvc, projectSvc, screeningSvc, queueSvc, conflictSvc, calibrationSvc, progressSvc)

	// --- HTTP ---
	r := chi.NewRouter()

	r.Use(lrhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(lrhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(lrhttp.Logger)
	if cfg.Telemetry.Enabled {
		r.Use(lrotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	r.Get("/health", healthHandler(queue))
	r.Get("/ws", hub.HandleWS)

	lrhttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports service liveness and queue connectivity.
func healthHandler(queue *lrnats.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
		NATS   bool   `json:"nats_connected"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{Status: "ok", NATS: queue.IsConnected()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
