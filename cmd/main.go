package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kraabmod/profiles-service/internal/api"
	"github.com/kraabmod/profiles-service/internal/config"
	"github.com/kraabmod/profiles-service/internal/database"
	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/mailer"
	"github.com/kraabmod/profiles-service/internal/store"
	"github.com/kraabmod/profiles-service/internal/supervisor"
	"github.com/kraabmod/profiles-service/internal/supervisor/services"
)

func main() {
	// .env is optional; the environment may already be populated.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Error loading configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logging.Info().Msg("No .env file loaded, relying on system environment")
	}
	logging.Info().Str("app_env", cfg.AppEnv).Str("log_level", cfg.LogLevel).Msg("Starting service")

	// --- Database Connection ---
	db, err := database.NewManager(cfg.Postgres)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.Ping(startupCtx); err != nil {
		// The manager keeps retrying in the background; requests fail until it recovers.
		logging.Warn().Err(err).Msg("Database not reachable at startup")
	} else {
		logging.Info().Str("host", cfg.Postgres.Host).Str("database", cfg.Postgres.Database).Msg("Database connection established")
	}
	if cfg.Postgres.AutoMigrate {
		if err := db.ExecScript(startupCtx, store.Schema); err != nil {
			logging.Fatal().Err(err).Msg("Failed to apply database schema")
		}
		logging.Info().Msg("Database schema applied")
	}
	cancelStartup()

	profileStore := store.NewPostgresStore(db)

	// --- Mail ---
	transport := mailer.NewBreakerTransport(
		mailer.NewSMTPTransport(cfg.Mail),
		cfg.Mail.BreakerMaxFailures,
		cfg.Mail.BreakerTimeout,
	)
	mail := mailer.New(transport, cfg.Mail.From, cfg.Mail.To)

	// --- HTTP ---
	httpHandler := api.NewHTTPHandler(profileStore, mail, db, api.Options{
		MaxUploadBytes: cfg.HttpServer.MaxUploadBytes,
		MailRateLimit:  cfg.Mail.RateLimit,
	})
	router := api.NewRouter(httpHandler, api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.HttpServer.RequestTimeout,
	})
	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      router,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	// --- Supervisor Tree ---
	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.HttpServer.ShutdownTimeout})
	tree.AddDataService(db)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.HttpServer.ShutdownTimeout))
	logging.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server registered")

	if cfg.GrpcServer.Enabled {
		grpcServer, healthServer := api.NewGRPCServer()
		tree.AddAPIService(services.NewGRPCServerService(grpcServer, ":"+cfg.GrpcServer.Port, cfg.HttpServer.ShutdownTimeout))
		tree.AddAPIService(api.NewHealthReporter(healthServer, db, cfg.Postgres.PingInterval))
		logging.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC health server registered")
	}

	// --- Graceful Shutdown ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
	}
	logging.Info().Msg("Shutdown signal received, stopping services")

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	if err := db.End(); err != nil {
		logging.Error().Err(err).Msg("Error closing database pool")
	}
	logging.Info().Msg("Service shutdown sequence finished")
}
