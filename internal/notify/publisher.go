package notify

import (
	"context"
	"fmt"

	"github.com/shanmugaclinic/clinic-platform/internal/events"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Publisher enqueues notification jobs for asynchronous delivery.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// PublishBooked enqueues a confirmation job for a freshly created appointment.
func (p *Publisher) PublishBooked(ctx context.Context, evt events.AppointmentBookedV1) error {
	if ctx == nil {
		ctx = context.Background()
	}
	payload, body, err := encodePayload(queuePayload{
		Kind:   kindBooked,
		Booked: &evt,
	})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: failed to enqueue booked event: %w", err)
	}
	p.logger.Debug("booked event enqueued", "job_id", payload.ID, "appointment_id", evt.AppointmentID)
	return nil
}
