package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/shanmugaclinic/clinic-platform/cmd/mainconfig"
	"github.com/shanmugaclinic/clinic-platform/internal/app/bootstrap"
	appconfig "github.com/shanmugaclinic/clinic-platform/internal/config"
	"github.com/shanmugaclinic/clinic-platform/internal/notify"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NotifyQueueURL == "" {
		logger.Error("notify worker requires NOTIFY_QUEUE_URL")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	service, err := bootstrap.BuildNotifyService(awsCfg, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build notification service", "error", err)
		os.Exit(1)
	}

	queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
	worker := notify.NewWorker(service, queue, logger,
		notify.WithWorkerCount(cfg.WorkerCount),
		notify.WithReceiveWaitSeconds(10),
	)

	worker.Start(ctx)
	logger.Info("notify worker started", "workers", cfg.WorkerCount, "queue", cfg.NotifyQueueURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down notify worker...")
	cancel()
	worker.Wait()
	logger.Info("notify worker stopped")
}
