package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const ServiceName = "supply-ingest"

// Topic names, shared with the producer side.
const (
	SupplyTopic       = "product-add-supply"
	DeadLetterTopic   = "product-add-supply-dlq"
	NotificationTopic = "product-supply-notifications"
	GroupID           = "supply-ingest-group"
)

// Config holds the environment-specific knobs.
type Config struct {
	KafkaBroker string
	MySQLDSN    string
	RedisAddr   string
	HTTPAddr    string

	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration

	LockTTL     time.Duration
	LockWait    time.Duration
	LockRetry   time.Duration
	RepoTimeout time.Duration
}

// Load reads configuration from the environment with defaults matching the
// local docker-compose setup.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaBroker: getEnvOrDefault("KAFKA_BROKER", "localhost:9092"),
		MySQLDSN:    getEnvOrDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/supplyingest?parseTime=true"),
		RedisAddr:   getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		HTTPAddr:    getEnvOrDefault("HTTP_ADDR", ":8080"),

		Workers:      getIntOrDefault("WORKERS", 4),
		MaxAttempts:  getIntOrDefault("MAX_ATTEMPTS", 3),
		RetryBackoff: getDurationOrDefault("RETRY_BACKOFF", 250*time.Millisecond),

		LockTTL:     getDurationOrDefault("LOCK_TTL", 30*time.Second),
		LockWait:    getDurationOrDefault("LOCK_WAIT", 5*time.Second),
		LockRetry:   getDurationOrDefault("LOCK_RETRY", 500*time.Millisecond),
		RepoTimeout: getDurationOrDefault("REPO_TIMEOUT", 5*time.Second),
	}

	if cfg.KafkaBroker == "" {
		return nil, fmt.Errorf("KAFKA_BROKER cannot be empty")
	}
	if cfg.MySQLDSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN cannot be empty")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR cannot be empty")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be at least 1")
	}
	if cfg.LockTTL <= cfg.LockWait {
		return nil, fmt.Errorf("LOCK_TTL must exceed LOCK_WAIT")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
