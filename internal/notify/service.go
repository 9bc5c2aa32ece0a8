package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/shanmugaclinic/clinic-platform/internal/events"
	"github.com/shanmugaclinic/clinic-platform/internal/observability/metrics"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// confirmationTemplate is the patient-facing WhatsApp message. It mirrors
// what the front desk used to send by hand: booking details plus the
// arrive-early reminder.
const confirmationTemplate = `🩺 *{{.ClinicName}}*

Hello *{{.Name}}* 👋
Your appointment is *successfully booked* ✅

📅 Date: *{{.Date}}*
⏰ Time: *{{.Time}}*
🎟 Queue No: *{{.QueueNumber}}*

📍 Please arrive 10 minutes early{{if .Contact}}
📞 Contact: {{.Contact}}{{end}}

Thank you 🙏`

var confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationTemplate))

// ServiceConfig holds the clinic identity baked into outbound messages.
type ServiceConfig struct {
	ClinicName     string
	ClinicContact  string
	CountryCode    string // e.g. "+91", prefixed to stored phone numbers
	OperatorEmails []string
}

// Service formats and delivers appointment notifications. Delivery failures
// are logged and counted but never retried here and never affect the
// appointment record.
type Service struct {
	whatsapp WhatsAppSender
	email    EmailSender
	cfg      ServiceConfig
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService creates a notification service. Either sender may be nil, in
// which case that channel is skipped.
func NewService(whatsapp WhatsAppSender, email EmailSender, cfg ServiceConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "The Clinic"
	}
	return &Service{
		whatsapp: whatsapp,
		email:    email,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// WhatsAppRecipient derives the destination address from a stored phone
// number by prefixing the configured country code.
func (s *Service) WhatsAppRecipient(phone string) string {
	phone = strings.TrimSpace(phone)
	return "whatsapp:" + s.cfg.CountryCode + phone
}

// ConfirmationMessage renders the patient confirmation for an appointment.
func (s *Service) ConfirmationMessage(evt events.AppointmentBookedV1) (string, error) {
	var sb strings.Builder
	err := confirmationTmpl.Execute(&sb, struct {
		ClinicName  string
		Name        string
		Date        string
		Time        string
		QueueNumber int
		Contact     string
	}{
		ClinicName:  s.cfg.ClinicName,
		Name:        evt.Name,
		Date:        evt.Date,
		Time:        evt.Time,
		QueueNumber: evt.QueueNumber,
		Contact:     s.cfg.ClinicContact,
	})
	if err != nil {
		return "", fmt.Errorf("notify: failed to render confirmation: %w", err)
	}
	return sb.String(), nil
}

// SendBookingConfirmation delivers the WhatsApp confirmation to the patient
// and, when configured, a heads-up email to clinic operators.
func (s *Service) SendBookingConfirmation(ctx context.Context, evt events.AppointmentBookedV1) error {
	var errs []error

	if s.whatsapp != nil {
		body, err := s.ConfirmationMessage(evt)
		if err != nil {
			return err
		}
		to := s.WhatsAppRecipient(evt.Phone)
		if err := s.whatsapp.SendWhatsApp(ctx, to, body); err != nil {
			s.logger.Error("whatsapp confirmation failed", "error", err, "appointment_id", evt.AppointmentID)
			s.metrics.ObserveNotification("whatsapp", "failed")
			errs = append(errs, err)
		} else {
			s.metrics.ObserveNotification("whatsapp", "sent")
		}
	}

	if s.email != nil && len(s.cfg.OperatorEmails) > 0 {
		subject := fmt.Sprintf("New appointment - %s (queue %d)", evt.Name, evt.QueueNumber)
		body := fmt.Sprintf(`%s booked an appointment.

Patient: %s
Phone: %s
Date: %s
Time: %s
Queue No: %d

- %s`, evt.Name, evt.Name, evt.Phone, evt.Date, evt.Time, evt.QueueNumber, s.cfg.ClinicName)

		for _, recipient := range s.cfg.OperatorEmails {
			msg := EmailMessage{
				To:      recipient,
				Subject: subject,
				Body:    body,
			}
			if err := s.email.Send(ctx, msg); err != nil {
				s.logger.Error("operator email failed", "error", err, "to", recipient)
				s.metrics.ObserveNotification("email", "failed")
				errs = append(errs, err)
			} else {
				s.metrics.ObserveNotification("email", "sent")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d delivery failure(s): %w", len(errs), errors.Join(errs...))
	}
	return nil
}
