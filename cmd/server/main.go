package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aeronav/airports/internal/api"
	"github.com/aeronav/airports/internal/index"
	"github.com/aeronav/airports/internal/metrics"
	"github.com/aeronav/airports/internal/reconcile"
	"github.com/aeronav/airports/internal/service"
	"github.com/aeronav/airports/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	_ = godotenv.Load()

	databaseURL := mustEnv("DATABASE_URL")
	geoRedisURL := mustEnv("REDIS_GEO_URL")
	popRedisURL := getEnv("REDIS_POP_URL", geoRedisURL)
	seedPath := getEnv("SEED_FILE", "data/airports.json")
	port := getEnv("PORT", "8080")

	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	if err := storage.RunMigrations(ctx, pool, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	// Connect to the two Redis index backends. They may share one server.
	geoClient, err := index.Connect(ctx, geoRedisURL)
	if err != nil {
		return fmt.Errorf("connecting to geo redis: %w", err)
	}
	defer func() { _ = geoClient.Close() }()

	popClient := geoClient
	if popRedisURL != geoRedisURL {
		popClient, err = index.Connect(ctx, popRedisURL)
		if err != nil {
			return fmt.Errorf("connecting to popularity redis: %w", err)
		}
		defer func() { _ = popClient.Close() }()
	}

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	geoIndex := index.NewGeoIndex(geoClient)
	popIndex := index.NewPopularityIndex(popClient)
	reg := metrics.New(prometheus.DefaultRegisterer)

	// Rebuild the derived indexes if they were lost, or bootstrap an empty
	// system from the seed file. Failures here are logged, not fatal.
	reconciler := reconcile.New(repo, geoIndex, popIndex, seedPath, reg, log)
	if res, err := reconciler.Run(ctx); err != nil {
		log.Error("reconciliation failed, continuing with current state", "err", err)
	} else {
		log.Info("reconciliation done", "action", res.Action,
			"loaded", res.Loaded, "skipped", res.Skipped, "restored", res.Restored)
	}

	svc := service.New(repo, geoIndex, popIndex, log)
	handlers := api.NewHandlers(svc, reg, log)

	dbPinger := &pgxPoolPinger{pool: pool}
	router := api.NewRouter(handlers, dbPinger,
		&redisPingerAdapter{client: geoClient},
		&redisPingerAdapter{client: popClient},
		log)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable not set", "key", key)
		os.Exit(1)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// pgxPoolPinger adapts pgxpool.Pool to the api pinger interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api pinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
