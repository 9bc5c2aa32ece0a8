package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shanmugaclinic/clinic-platform/cmd/mainconfig"
	"github.com/shanmugaclinic/clinic-platform/internal/admin"
	"github.com/shanmugaclinic/clinic-platform/internal/api/router"
	"github.com/shanmugaclinic/clinic-platform/internal/app/bootstrap"
	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/internal/archive"
	appconfig "github.com/shanmugaclinic/clinic-platform/internal/config"
	"github.com/shanmugaclinic/clinic-platform/internal/livequeue"
	"github.com/shanmugaclinic/clinic-platform/internal/notify"
	"github.com/shanmugaclinic/clinic-platform/internal/observability/metrics"
	"github.com/shanmugaclinic/clinic-platform/internal/schedule"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

func main() {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Stores and services
	apptStore := appointments.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	scheduleStore := schedule.NewStore(dynamoClient, cfg.DoctorLeavesTable, cfg.DoctorStatusTable, logger)
	scheduleService := schedule.NewService(scheduleStore, cfg.Location(), logger)

	notifyService, err := bootstrap.BuildNotifyService(awsCfg, cfg, bookingMetrics, logger)
	if err != nil {
		logger.Error("failed to build notification service", "error", err)
		os.Exit(1)
	}
	publisher, worker, err := bootstrap.BuildNotifyPipeline(cfg, sqsClient, notifyService, logger, cfg.UseMemoryQueue)
	if err != nil {
		logger.Error("failed to build notification pipeline", "error", err)
		os.Exit(1)
	}
	if worker != nil {
		worker.Start(ctx)
		logger.Info("in-process notification worker started", "workers", cfg.WorkerCount)
	}

	snapshotCache := bootstrap.BuildSnapshotCache(ctx, cfg, logger)

	opts := []appointments.ServiceOption{
		appointments.WithMetrics(bookingMetrics),
	}
	if publisher != nil {
		opts = append(opts, appointments.WithPublisher(publisher))
	}
	if snapshotCache != nil {
		opts = append(opts, appointments.WithSnapshotCache(snapshotCache))
	}

	hub := livequeue.NewHub(nil, logger)
	opts = append(opts, appointments.WithChangeNotifier(hub))

	apptService := appointments.NewService(apptStore, scheduleService, cfg.DoctorName, cfg.Location(), logger, opts...)
	hub.SetSource(apptService.TodayQueue)
	hub.Start(ctx)

	archiveStore := archive.NewStore(s3.NewFromConfig(awsCfg), apptStore, cfg.ArchiveBucket, logger)

	// Handlers
	apptHandler := appointments.NewHandler(apptService, logger)
	scheduleHandler := schedule.NewHandler(scheduleService, logger)
	adminHandler := admin.NewHandler(cfg.AdminPassword, cfg.AdminJWTSecret, cfg.AdminTokenTTL, logger)
	liveHandler := livequeue.NewHandler(hub, apptService.TodayQueue, logger)
	archiveHandler := archive.NewHandler(archiveStore, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: apptHandler,
		ScheduleHandler:     scheduleHandler,
		AdminAuthHandler:    adminHandler,
		LiveQueueHandler:    liveHandler,
		ArchiveHandler:      archiveHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		PublicBaseURL:       cfg.PublicBaseURL,
		BookingRateLimit:    2,
		BookingBurst:        5,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	cancel()
	if worker != nil {
		waitWorker(worker, 10*time.Second, logger)
	}

	logger.Info("server stopped")
}

func waitWorker(worker *notify.Worker, timeout time.Duration, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("notification worker did not stop in time")
	}
}
