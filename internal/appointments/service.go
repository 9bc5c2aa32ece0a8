package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shanmugaclinic/clinic-platform/internal/events"
	"github.com/shanmugaclinic/clinic-platform/internal/observability/metrics"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// ErrInvalidInput indicates a malformed booking request (missing field or a
// value outside its closed domain), as opposed to a business-rule rejection.
var ErrInvalidInput = errors.New("appointments: invalid input")

// Closure describes why the clinic is closed on a given date.
type Closure struct {
	Holiday bool
	Message string
}

// Availability reports whether the doctor can see patients on a date.
// A nil Closure means the date is open for booking.
type Availability interface {
	Check(ctx context.Context, date string) (*Closure, error)
}

// BookedPublisher emits an event after an appointment is persisted.
type BookedPublisher interface {
	PublishBooked(ctx context.Context, evt events.AppointmentBookedV1) error
}

// SnapshotCache caches the derived queue projection per date.
type SnapshotCache interface {
	Get(ctx context.Context, date string) (*QueueSnapshot, error)
	Set(ctx context.Context, snapshot *QueueSnapshot) error
	Invalidate(ctx context.Context, date string) error
}

// ChangeNotifier is poked whenever the queue projection may have changed.
type ChangeNotifier interface {
	QueueChanged()
}

type recordStore interface {
	NextQueueNumber(ctx context.Context, date string) (int, error)
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	ByDate(ctx context.Context, date string) ([]Appointment, error)
	ListRecent(ctx context.Context, limit int) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	Cancel(ctx context.Context, appt *Appointment) error
}

// Service implements the booking workflow, the queue projection, and the
// admin status transitions.
type Service struct {
	store        recordStore
	availability Availability
	publisher    BookedPublisher
	cache        SnapshotCache
	notifier     ChangeNotifier
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger

	doctorName string
	location   *time.Location
	now        func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithPublisher wires an event publisher invoked after each booking.
func WithPublisher(p BookedPublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithSnapshotCache wires a queue projection cache.
func WithSnapshotCache(c SnapshotCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithChangeNotifier wires a listener poked on every queue mutation.
func WithChangeNotifier(n ChangeNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics wires booking metrics.
func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the service clock, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the booking service.
func NewService(store recordStore, availability Availability, doctorName string, location *time.Location, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if availability == nil {
		panic("appointments: availability checker cannot be nil")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:        store,
		availability: availability,
		doctorName:   doctorName,
		location:     location,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current clinic-local date in wire format.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(DateLayout)
}

// Book validates a prospective appointment and either persists it with an
// assigned queue number or returns a *RejectionError with the first violated
// rule. Checks run in a fixed order and short-circuit: holiday, leave,
// duplicate phone, duplicate name, slot taken. The same rules are enforced
// again by the store's transaction, so two racing requests cannot both win.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	start := s.now()
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err), s.now().Sub(start).Seconds())
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if _, err := time.ParseInLocation(DateLayout, req.Date, s.location); err != nil {
		return nil, fmt.Errorf("%w: date %q is not a valid date", ErrInvalidInput, req.Date)
	}
	if req.Date < s.Today() {
		return nil, fmt.Errorf("%w: date %q is in the past", ErrInvalidInput, req.Date)
	}
	if !ValidSlot(req.Time) {
		return nil, fmt.Errorf("%w: time %q is not a bookable slot", ErrInvalidInput, req.Time)
	}

	closure, err := s.availability.Check(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("appointments: availability check failed: %w", err)
	}
	if closure != nil {
		if closure.Holiday {
			return nil, reject(ReasonHoliday, closure.Message)
		}
		return nil, reject(ReasonDoctorUnavailable, closure.Message)
	}

	existing, err := s.store.ByDate(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	if rej := findConflict(existing, req); rej != nil {
		return nil, rej
	}

	queueNumber, err := s.store.NextQueueNumber(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Phone:       req.Phone,
		Date:        req.Date,
		Time:        req.Time,
		Doctor:      s.doctorName,
		QueueNumber: queueNumber,
		Status:      StatusPending,
		Source:      req.Source,
		CreatedAt:   s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"id", appt.ID,
		"date", appt.Date,
		"time", appt.Time,
		"queue_number", appt.QueueNumber,
	)

	s.queueChanged(ctx, appt.Date)
	s.publishBooked(ctx, appt)
	return appt, nil
}

// findConflict applies the duplicate checks in spec order against the
// already-booked records for the date. Cancelled records do not count.
func findConflict(existing []Appointment, req BookingRequest) *RejectionError {
	name := strings.ToLower(req.Name)
	for _, appt := range existing {
		if !appt.Status.Active() {
			continue
		}
		if appt.Phone == req.Phone {
			return reject(ReasonDuplicatePhone, "An appointment already exists for this phone number on this date")
		}
	}
	for _, appt := range existing {
		if !appt.Status.Active() {
			continue
		}
		if strings.ToLower(appt.Name) == name {
			return reject(ReasonDuplicateName, "An appointment already exists under this name on this date")
		}
	}
	for _, appt := range existing {
		if !appt.Status.Active() {
			continue
		}
		if appt.Time == req.Time {
			return reject(ReasonSlotTaken, "This time slot is already booked")
		}
	}
	return nil
}

func (s *Service) publishBooked(ctx context.Context, appt *Appointment) {
	if s.publisher == nil {
		return
	}
	evt := events.AppointmentBookedV1{
		AppointmentID: appt.ID,
		Name:          appt.Name,
		Phone:         appt.Phone,
		Date:          appt.Date,
		Time:          appt.Time,
		Doctor:        appt.Doctor,
		QueueNumber:   appt.QueueNumber,
		Source:        appt.Source,
		OccurredAt:    s.now().UTC(),
	}
	// Notification delivery never rolls back a booking.
	if err := s.publisher.PublishBooked(ctx, evt); err != nil {
		s.logger.Error("failed to publish booked event", "error", err, "id", appt.ID)
	}
}

func (s *Service) queueChanged(ctx context.Context, date string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, date); err != nil {
			s.logger.Warn("failed to invalidate queue cache", "error", err, "date", date)
		}
	}
	if s.notifier != nil {
		s.notifier.QueueChanged()
	}
	s.metrics.SetQueueSize(s.queueSizeHint(ctx, date))
}

func (s *Service) queueSizeHint(ctx context.Context, date string) int {
	if date != s.Today() {
		return -1
	}
	snapshot, err := s.buildSnapshot(ctx, date)
	if err != nil {
		return -1
	}
	return len(snapshot.Entries)
}

// BookedTimes returns the slot labels already held for a date, used by the
// booking form to grey out taken slots.
func (s *Service) BookedTimes(ctx context.Context, date string) ([]string, error) {
	existing, err := s.store.ByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	times := make([]string, 0, len(existing))
	for _, appt := range existing {
		if appt.Status.Active() {
			times = append(times, appt.Time)
		}
	}
	return times, nil
}

// TodayQueue returns the live queue projection for the current clinic date.
// The projection is purely derived and never mutates the store.
func (s *Service) TodayQueue(ctx context.Context) (*QueueSnapshot, error) {
	date := s.Today()
	if s.cache != nil {
		if snapshot, err := s.cache.Get(ctx, date); err == nil && snapshot != nil {
			return snapshot, nil
		}
	}
	snapshot, err := s.buildSnapshot(ctx, date)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshot); err != nil {
			s.logger.Warn("failed to cache queue snapshot", "error", err, "date", date)
		}
	}
	return snapshot, nil
}

func (s *Service) buildSnapshot(ctx context.Context, date string) (*QueueSnapshot, error) {
	records, err := s.store.ByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(date, records, s.now().UTC()), nil
}

// ListRecent returns the latest appointments for the admin dashboard.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Appointment, error) {
	return s.store.ListRecent(ctx, limit)
}

// Advance moves an appointment to the given status, enforcing the state
// machine. Cancellation additionally releases the slot's uniqueness locks.
func (s *Service) Advance(ctx context.Context, id string, to Status) (*Appointment, error) {
	if !to.Valid() || to == StatusPending {
		return nil, fmt.Errorf("%w: cannot move an appointment to %q", ErrInvalidTransition, to)
	}
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	if to == StatusCancelled {
		err = s.store.Cancel(ctx, appt)
	} else {
		err = s.store.UpdateStatus(ctx, id, appt.Status, to)
	}
	if err != nil {
		return nil, err
	}

	appt.Status = to
	s.logger.Info("appointment status changed", "id", id, "status", to)
	s.queueChanged(ctx, appt.Date)
	return appt, nil
}

// Cancel marks an appointment Cancelled. Queue numbers already issued keep
// their gap; the slot itself becomes bookable again.
func (s *Service) Cancel(ctx context.Context, id string) (*Appointment, error) {
	return s.Advance(ctx, id, StatusCancelled)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		if rej, ok := AsRejection(err); ok {
			return string(rej.Reason)
		}
		return "error"
	}
}
