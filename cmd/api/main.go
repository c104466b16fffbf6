package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/01moynul/starter-api/internal/auth"
	"github.com/01moynul/starter-api/internal/config"
	"github.com/01moynul/starter-api/internal/database"
	"github.com/01moynul/starter-api/internal/handlers"
	"github.com/01moynul/starter-api/internal/logger"
	"github.com/01moynul/starter-api/internal/routes"
	"github.com/01moynul/starter-api/internal/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// 0. --- Load Environment Variables (.env) ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 1. --- Logger ---
	zlog, _, err := logger.New(logger.Config{
		Environment: logger.Environment(cfg.AppEnv),
		Level:       cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	if !cfg.EnvFileLoaded {
		zlog.Warn("Could not find or load .env file. Relying on system environment variables.")
	}
	if err := cfg.Validate(); err != nil {
		zlog.Warn("Configuration is incomplete", zap.Strings("missing", cfg.Missing()))
	}
	if cfg.AppEnv == string(logger.EnvironmentProduction) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. --- Database Handle ---
	if err := database.RouteDriverLogs(zlog); err != nil {
		zlog.Warn("Could not route MySQL driver logs", zap.Error(err))
	}

	db, err := database.Open(ctx, database.SettingsFromConfig(cfg), zlog)
	db, err = database.Require(db, err, cfg.DBRequireConnection)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// --- Application Setup ---
	app := &handlers.Handlers{
		DB:     db,
		Signer: auth.NewSigner(cfg.JWTAuthSecret, auth.DefaultTTL),
		Log:    zlog,
	}

	// --- Router Setup ---
	router, err := routes.SetupRouter(app, routes.Options{
		ClientURL: cfg.ClientURL,
		BodyLimit: cfg.BodyLimitBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// --- Start Server ---
	return server.New(router, cfg.ServerPort, zlog).Run(ctx)
}
