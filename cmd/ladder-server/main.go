package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sameera/osem-ladders-sub001/internal/api"
	"github.com/sameera/osem-ladders-sub001/internal/config"
	"github.com/sameera/osem-ladders-sub001/internal/ladder"
	"github.com/sameera/osem-ladders-sub001/internal/services"
	"github.com/sameera/osem-ladders-sub001/internal/storage"
	"github.com/sameera/osem-ladders-sub001/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting ladder-server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := services.NewRegistry()
	defer func() {
		if err := registry.CloseAll(); err != nil {
			slog.Error("failed to close services", "error", err)
		}
	}()

	repo, err := openRepository(initCtx, cfg.Database, registry)
	if err != nil {
		slog.Error("failed to create report repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var hub *api.Hub
	if cfg.Redis.Address != "" {
		redisProvider, err := services.NewRedisProvider(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to create redis provider", "error", err)
			os.Exit(1)
		}
		registry.Register("redis", redisProvider)
		hub = api.NewHub(redisProvider.Client())
	} else {
		slog.Info("redis not configured, report events stay local to this instance")
		hub = api.NewHub(nil)
	}

	// Load ladders
	ladderLoader := ladder.NewLoader()
	if err := ladderLoader.LoadFromDir(cfg.Ladders.Dir); err != nil {
		slog.Warn("failed to load ladders from dir", "dir", cfg.Ladders.Dir, "error", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Ladders.Watch {
		watcher, err := ladder.NewWatcher(cfg.Ladders.Dir, ladderLoader)
		if err != nil {
			slog.Error("failed to create ladder watcher", "error", err)
			os.Exit(1)
		}
		watcher.OnChange(func(id string) {
			slog.Info("ladder catalog changed", "id", id)
		})
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("ladder hot reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	go hub.Run(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, repo, ladderLoader, registry, hub)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("ladder-server stopped")
}

// openRepository connects to Postgres and applies migrations, or falls back to memory without a DSN
func openRepository(ctx context.Context, cfg config.DatabaseConfig, registry *services.Registry) (storage.Repository, error) {
	if cfg.DSN == "" {
		slog.Warn("DATABASE_DSN not set, reports are kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxConns),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("database connected successfully")

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}
	slog.Info("running database migrations", "dir", cfg.MigrationsDir)
	if err := storage.RunMigrations(ctx, repo.Pool(), source); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	postgresProvider, err := services.NewPostgresProvider(ctx, cfg.DSN)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create postgres provider: %w", err)
	}
	registry.Register("postgres", postgresProvider)

	if n, err := postgresProvider.AppliedMigrations(ctx); err == nil {
		slog.Info("schema up to date", "migrations", n)
	}

	return repo, nil
}
