package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/config"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/factory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/maintenance"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/postgres"
	redisstorage "github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/redis"
)

func main() {
	// A missing .env is fine; the real environment still applies
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build factory config from environment
	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		CatalogDir:  cfg.CatalogDir,
		Services:    cfg.Services(),
	}

	switch cfg.StorageType {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case config.StoragePostgres:
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			logger.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = cfg.DatabaseURL
		factoryCfg.PostgresConfig = &pgCfg
	}

	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.AdminKey == "" {
		logger.Warn("ADMIN_KEY is not set; admin routes are disabled")
	}

	scheduler, err := maintenance.New(app.LimiterService, cfg.PruneInterval, logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.String("error", err.Error()))
		_ = app.Close()
		os.Exit(1)
	}
	if err := scheduler.AddSweep(app.Notifier, cfg.PruneInterval); err != nil {
		logger.Error("failed to schedule sweep", slog.String("error", err.Error()))
		_ = app.Close()
		os.Exit(1)
	}
	scheduler.Start()

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AdminKey:       cfg.AdminKey,
		AuthService:    app.AuthService,
		StaminaService: app.StaminaService,
		ScoringService: app.ScoringService,
		RatingService:  app.RatingService,
		WorldService:   app.WorldService,
		Maps:           app.Catalog,
		Notifier:       app.Notifier,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	server := api.NewServer(mux, api.DefaultServerConfig(cfg.Addr()), logger)
	// Open event streams only end when the notifier closes
	server.OnShutdown(func() { _ = app.Notifier.Close() })

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
	}

	if err := app.Close(); err != nil {
		logger.Error("failed to close storage", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}
