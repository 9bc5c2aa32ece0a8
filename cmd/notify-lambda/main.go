package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/shanmugaclinic/clinic-platform/cmd/mainconfig"
	"github.com/shanmugaclinic/clinic-platform/internal/app/bootstrap"
	appconfig "github.com/shanmugaclinic/clinic-platform/internal/config"
	clinicevents "github.com/shanmugaclinic/clinic-platform/internal/events"
	"github.com/shanmugaclinic/clinic-platform/internal/notify"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// handler delivers booking confirmations straight off the appointments
// table stream. Deployments without an SQS worker fleet attach this Lambda
// to the DynamoDB stream instead.
type handler struct {
	service *notify.Service
	logger  *logging.Logger
}

func (h *handler) handle(ctx context.Context, streamEvent events.DynamoDBEvent) error {
	for _, record := range streamEvent.Records {
		if record.EventName != "INSERT" {
			continue
		}
		evt, ok := bookedEventFromImage(record.Change.NewImage)
		if !ok {
			continue
		}
		if err := h.service.SendBookingConfirmation(ctx, evt); err != nil {
			// Confirmations are best effort; a retry would re-send any
			// deliveries that already succeeded.
			h.logger.Error("confirmation delivery failed",
				"error", err,
				"appointment_id", evt.AppointmentID,
			)
		}
	}
	return nil
}

// bookedEventFromImage converts a stream image into a booked event. Counter
// and lock items share the appointments table and are skipped by id prefix.
func bookedEventFromImage(image map[string]events.DynamoDBAttributeValue) (clinicevents.AppointmentBookedV1, bool) {
	id := stringAttr(image, "id")
	if id == "" || strings.HasPrefix(id, "LOCK#") || strings.HasPrefix(id, "COUNTER#") {
		return clinicevents.AppointmentBookedV1{}, false
	}
	date := stringAttr(image, "date")
	if date == "" {
		return clinicevents.AppointmentBookedV1{}, false
	}

	evt := clinicevents.AppointmentBookedV1{
		AppointmentID: id,
		Name:          stringAttr(image, "name"),
		Phone:         stringAttr(image, "phone"),
		Date:          date,
		Time:          stringAttr(image, "time"),
		Doctor:        stringAttr(image, "doctor"),
		QueueNumber:   numberAttr(image, "queueNumber"),
		Source:        stringAttr(image, "source"),
		OccurredAt:    time.Now().UTC(),
	}
	if created := stringAttr(image, "createdAt"); created != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
			evt.OccurredAt = parsed
		}
	}
	return evt, true
}

func stringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	attr, ok := image[key]
	if !ok || attr.DataType() != events.DataTypeString {
		return ""
	}
	return attr.String()
}

func numberAttr(image map[string]events.DynamoDBAttributeValue, key string) int {
	attr, ok := image[key]
	if !ok || attr.DataType() != events.DataTypeNumber {
		return 0
	}
	n, err := strconv.Atoi(attr.Number())
	if err != nil {
		return 0
	}
	return n
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		panic(err)
	}
	service, err := bootstrap.BuildNotifyService(awsCfg, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build notification service", "error", err)
		panic(err)
	}

	h := &handler{service: service, logger: logger}
	lambda.Start(h.handle)
}
