package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Store backends. The catalog can live in memory or Postgres; usage
	// counts additionally support Redis.
	CatalogStore string
	UsageStore   string

	// Postgres (required when either store is "postgres")
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (required when USAGE_STORE is "redis")
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ShutdownTimeout time.Duration
}

func New() (*Config, error) {
	// Load .env if present (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CatalogStore: getEnv("CATALOG_STORE", StoreMemory),
		UsageStore:   getEnv("USAGE_STORE", StoreMemory),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	switch cfg.CatalogStore {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("CATALOG_STORE must be %q or %q, got: %s", StoreMemory, StorePostgres, cfg.CatalogStore)
	}
	switch cfg.UsageStore {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("USAGE_STORE must be %q, %q or %q, got: %s", StoreMemory, StorePostgres, StoreRedis, cfg.UsageStore)
	}
	if cfg.NeedsPostgres() && cfg.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required when a store uses postgres")
	}

	return cfg, nil
}

func (c *Config) NeedsPostgres() bool {
	return c.CatalogStore == StorePostgres || c.UsageStore == StorePostgres
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
