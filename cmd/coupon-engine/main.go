package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartloop/coupon-engine/internal/api"
	"github.com/cartloop/coupon-engine/internal/config"
	"github.com/cartloop/coupon-engine/internal/logging"
	"github.com/cartloop/coupon-engine/internal/repository"
	"github.com/cartloop/coupon-engine/pkg/db"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)

	var catalog repository.CatalogStore = repository.NewMemoryCatalog()
	var usage repository.UsageStore = repository.NewMemoryUsage()

	if cfg.NeedsPostgres() {
		conn, err := db.NewPostgresConnection(db.PostgresConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer conn.Close()

		if cfg.CatalogStore == config.StorePostgres {
			catalog = repository.NewPostgresCatalog(conn)
		}
		if cfg.UsageStore == config.StorePostgres {
			usage = repository.NewPostgresUsage(conn)
		}
	}

	if cfg.UsageStore == config.StoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		usage = repository.NewRedisUsage(client)
	}

	handler := api.NewRouter(catalog, usage, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	logger.Info("starting coupon-engine",
		"port", cfg.Port,
		"catalog_store", cfg.CatalogStore,
		"usage_store", cfg.UsageStore,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}

	<-idleConnsClosed
	logger.Info("server stopped")
	return nil
}
