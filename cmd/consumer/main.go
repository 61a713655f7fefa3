package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stokd/supply-ingest/internal/adapter/bus"
	"github.com/stokd/supply-ingest/internal/adapter/storage"
	"github.com/stokd/supply-ingest/internal/config"
	"github.com/stokd/supply-ingest/internal/core/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", config.ServiceName))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Kafka
	newReader := func() *kafka.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{cfg.KafkaBroker},
			Topic:   config.SupplyTopic,
			GroupID: config.GroupID,
		})
	}
	deadLetterWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBroker),
		Topic:    config.DeadLetterTopic,
		Balancer: &kafka.LeastBytes{},
	}
	notificationWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBroker),
		Topic:    config.NotificationTopic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("configured kafka",
		zap.String("broker", cfg.KafkaBroker),
		zap.String("topic", config.SupplyTopic),
		zap.String("group_id", config.GroupID),
	)

	// Wiring
	locker := storage.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, cfg.LockRetry)
	repo := storage.NewMySQLRepository(db)
	notifier := bus.NewKafkaNotifier(notificationWriter)
	ingestor := service.NewIngestor(locker, repo, notifier, logger, cfg.RepoTimeout)

	// Liveness endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Blocks until SIGINT/SIGTERM cancels ctx; workers drain before return.
	// When a partition is parked on an uncommitted offset the reader is
	// rebuilt so the group redelivers from the last committed offset.
	reader := newReader()
	for {
		err := bus.NewConsumer(
			reader, ingestor, deadLetterWriter, logger,
			cfg.Workers, cfg.MaxAttempts, cfg.RetryBackoff,
		).Run(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, bus.ErrRedeliveryRequired) {
			logger.Error("consumer error", zap.Error(err))
			break
		}
		logger.Warn("restarting consumer for redelivery")
		if err := reader.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case <-time.After(cfg.RetryBackoff):
		}
		if ctx.Err() != nil {
			break
		}
		reader = newReader()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	if err := reader.Close(); err != nil {
		logger.Error("failed to close kafka reader", zap.Error(err))
	}
	deadLetterWriter.Close()
	notificationWriter.Close()
	logger.Info("kafka closed")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
