// Package main runs the background job worker consuming the Redis queue
// (response enrichment, action generation, outbound email).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ratepro/backend/config"
	"github.com/ratepro/backend/internal/actions"
	"github.com/ratepro/backend/internal/contacts"
	"github.com/ratepro/backend/internal/enrichment"
	"github.com/ratepro/backend/internal/notifications"
	"github.com/ratepro/backend/internal/responses"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/internal/worker"
	"github.com/ratepro/backend/pkg/database"
	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	responseRepo := responses.NewRepository(pool)
	surveyRepo := surveys.NewRepository(pool)
	actionRepo := actions.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	contactRepo := contacts.NewRepository(pool)
	hub := notifications.NewHub(logger)

	statsSyncer := contacts.NewStatsSyncer(contactRepo, logger)
	aggregates := surveys.NewAggregateUpdater(surveyRepo, logger)

	jobQueue := queue.NewRedisQueue(rdb.Client, logger)
	aiClient := enrichment.NewGeminiClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	pipeline := enrichment.NewPipeline(responseRepo, surveyRepo, actionRepo,
		notificationRepo, hub, statsSyncer, aggregates, aiClient, jobQueue, logger)
	emailSender := &worker.LogSender{Logger: logger}

	w := worker.New(jobQueue, pipeline, emailSender, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("worker exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
