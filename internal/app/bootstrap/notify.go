package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/shanmugaclinic/clinic-platform/internal/config"
	"github.com/shanmugaclinic/clinic-platform/internal/notify"
	"github.com/shanmugaclinic/clinic-platform/internal/observability/metrics"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// BuildWhatsAppSender wires the Twilio WhatsApp client, or returns nil when
// Twilio credentials are not configured.
func BuildWhatsAppSender(cfg *appconfig.Config, logger *logging.Logger) (notify.WhatsAppSender, error) {
	if cfg == nil || strings.TrimSpace(cfg.TwilioAccountSID) == "" {
		return nil, nil
	}
	client, err := notify.NewTwilioClient(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
		Timeout:    10 * time.Second,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: twilio client: %w", err)
	}
	return client, nil
}

// BuildEmailSender picks the operator email provider from config. An
// unrecognized provider falls back to the stub sender so deliveries are
// logged rather than dropped silently.
func BuildEmailSender(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if cfg == nil {
		return nil
	}
	switch cfg.EmailProvider {
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case "sendgrid":
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		return notify.NewStubEmailSender(logger)
	}
}

// BuildNotifyService assembles the notification service from config.
func BuildNotifyService(awsCfg aws.Config, cfg *appconfig.Config, m *metrics.BookingMetrics, logger *logging.Logger) (*notify.Service, error) {
	whatsapp, err := BuildWhatsAppSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	email := BuildEmailSender(awsCfg, cfg, logger)
	return notify.NewService(whatsapp, email, notify.ServiceConfig{
		ClinicName:     cfg.ClinicName,
		ClinicContact:  cfg.ClinicContact,
		CountryCode:    cfg.PhoneCountryCode,
		OperatorEmails: cfg.OperatorEmails,
	}, m, logger), nil
}

// BuildNotifyPipeline wires the queue, publisher and worker as a unit so
// the in-memory queue variant shares one instance between producer and
// consumer. The returned worker is nil when delivery runs out of process
// (SQS configured, workerInProcess false).
func BuildNotifyPipeline(cfg *appconfig.Config, sqsClient *sqs.Client, service *notify.Service, logger *logging.Logger, workerInProcess bool) (*notify.Publisher, *notify.Worker, error) {
	if cfg.UseMemoryQueue {
		queue := notify.NewMemoryQueue(64)
		publisher := notify.NewPublisher(queue, logger)
		worker := notify.NewWorker(service, queue, logger,
			notify.WithWorkerCount(cfg.WorkerCount),
		)
		return publisher, worker, nil
	}

	if cfg.NotifyQueueURL == "" {
		logger.Warn("notify queue not configured, confirmations disabled")
		return nil, nil, nil
	}
	if sqsClient == nil {
		return nil, nil, fmt.Errorf("bootstrap: sqs client required for queue %s", cfg.NotifyQueueURL)
	}
	queue := notify.NewSQSQueue(sqsClient, cfg.NotifyQueueURL)
	publisher := notify.NewPublisher(queue, logger)
	if !workerInProcess {
		return publisher, nil, nil
	}
	worker := notify.NewWorker(service, queue, logger,
		notify.WithWorkerCount(cfg.WorkerCount),
	)
	return publisher, worker, nil
}
