// Package main is the entry point for the Gatekeeper agent process.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/auditlog"
	"github.com/justengland/gatekeeper/internal/config"
	"github.com/justengland/gatekeeper/internal/database"
	"github.com/justengland/gatekeeper/internal/domain"
	"github.com/justengland/gatekeeper/internal/idempotency"
	"github.com/justengland/gatekeeper/internal/middleware"
	"github.com/justengland/gatekeeper/internal/orchestrator"
	"github.com/justengland/gatekeeper/internal/provider"
	"github.com/justengland/gatekeeper/internal/provider/postgres"
	"github.com/justengland/gatekeeper/internal/server"
	"github.com/justengland/gatekeeper/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg)
	logger.Info().
		Str("env", cfg.Server.Env).
		Str("port", cfg.Server.Port).
		Msg("Starting Gatekeeper agent")

	ctx := context.Background()

	registry := provider.NewRegistry()
	registry.Register("postgresql", postgres.Factory(logger))
	registry.Register("mysql", provider.StubFactory("mysql"))
	registry.Register("mssql", provider.StubFactory("mssql"))

	pg, err := registry.Create("postgresql")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to construct postgresql provider")
	}

	conn := provider.ConnectionInfo{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}
	creds := provider.Credentials{
		Username: cfg.Database.AdminUser,
		Password: cfg.Database.AdminPassword,
	}

	pgProvider, ok := pg.(*postgres.Provider)
	if !ok {
		logger.Fatal().Msg("postgresql provider did not return the expected concrete type")
	}
	pgProvider.SetPoolBounds(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)

	// Open the admin pool and run the bootstrap migration directly, ahead
	// of constructing the orchestrator: the audit writer needs the same
	// *sql.DB handle, which only exists once Initialize has run.
	if err := pgProvider.Initialize(ctx, conn, creds); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize postgresql provider")
	}

	redis, err := database.NewRedis(cfg.Redis, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to Redis, idempotency cache will fail open")
		redis = nil
	}
	if redis != nil {
		defer redis.Close()
	}

	tracer, err := telemetry.New(ctx, cfg.Otel, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	idem := idempotency.New(redis, logger)
	audit := auditlog.New(pgProvider.DB(), logger)

	orch := orchestrator.New(pg, audit, idem, tracer, orchestrator.Config{
		MaxTTLMinutes:    cfg.Session.MaxTTLMinutes,
		DefaultConnLimit: cfg.Session.DefaultConnLimit,
	}, logger)
	defer orch.Shutdown()

	// The provider is already initialized; this records the connection and
	// runs the orchestrator's once-only init, which returns at once because
	// the provider's pool is already open.
	if err := orch.Initialize(ctx, conn, creds); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize orchestrator")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "GET"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	started := time.Now()
	r.Post("/v1/jobs", jobsHandler(orch, logger))
	r.Get("/healthz", healthHandler(orch, started))

	srv := server.New(cfg, r, logger)

	logger.Info().Str("addr", srv.Addr()).Msg("Gatekeeper agent ready to accept connections")

	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Gatekeeper agent shutdown complete")
}

func jobsHandler(orch *orchestrator.Orchestrator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env domain.JobEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "INVALID_BODY", "message": err.Error()})
			return
		}

		result, err := orch.Dispatch(r.Context(), env)
		if err != nil {
			logger.Error().Err(err).Str("job_id", env.ID).Msg("dispatch failed unexpectedly")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL_ERROR", "message": "failed to dispatch job"})
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func healthHandler(orch *orchestrator.Orchestrator, started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(started).Seconds())

		status, health, err := orch.Health(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "down", "message": err.Error(), "uptimeSeconds": uptime})
			return
		}

		httpStatus := http.StatusOK
		if status != "ok" {
			httpStatus = http.StatusServiceUnavailable
		}
		writeJSON(w, httpStatus, map[string]interface{}{"status": status, "health": health, "uptimeSeconds": uptime})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// setupLogger configures zerolog based on environment.
func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Logging.Format == "console" || cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
