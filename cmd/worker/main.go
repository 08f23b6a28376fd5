// Package main runs the background email worker: queued notifications are delivered and logged.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leadflow/crm/config"
	"github.com/leadflow/crm/internal/emaillogs"
	"github.com/leadflow/crm/internal/worker"
	"github.com/leadflow/crm/pkg/database"
	"github.com/leadflow/crm/pkg/queue"
	"github.com/leadflow/crm/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var mailer worker.Mailer
	if cfg.Email.SMTPHost != "" {
		smtpMailer, err := worker.NewSMTPMailer(cfg.Email)
		if err != nil {
			logger.Fatal("smtp", zap.Error(err))
		}
		mailer = smtpMailer
		logger.Info("smtp delivery enabled",
			zap.String("host", cfg.Email.SMTPHost),
			zap.Int("port", cfg.Email.SMTPPort),
			zap.String("tls_policy", cfg.Email.SMTPTLSPolicy),
		)
	} else {
		mailer = worker.NewLogMailer(logger)
		logger.Warn("SMTP_HOST not set, emails will only be logged")
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, mailer, emaillogs.NewRepository(pool), logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
