// Package main recomputes the denormalized survey aggregates and contact
// stats from the authoritative response rows. Run after migrations or any
// manual data repair; it is safe to run at any time.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ratepro/backend/config"
	"github.com/ratepro/backend/internal/contacts"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	start := time.Now()

	surveyRepo := surveys.NewRepository(pool)
	aggregates := surveys.NewAggregateUpdater(surveyRepo, logger)
	if err := aggregates.Reconcile(ctx); err != nil {
		logger.Fatal("reconcile survey aggregates", zap.Error(err))
	}

	contactRepo := contacts.NewRepository(pool)
	syncer := contacts.NewStatsSyncer(contactRepo, logger)
	written, err := syncer.Reconcile(ctx)
	if err != nil {
		logger.Fatal("reconcile contact stats", zap.Error(err))
	}

	logger.Info("reconciliation complete",
		zap.Int("contacts_rewritten", written),
		zap.Duration("took", time.Since(start)))
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
