package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

type leaveStore interface {
	GetLeave(ctx context.Context, date string) (*LeaveRecord, error)
	SetLeave(ctx context.Context, record *LeaveRecord) error
	RemoveLeave(ctx context.Context, date string) error
	ListLeaves(ctx context.Context) ([]LeaveRecord, error)
	GetDayStatus(ctx context.Context) (*DayStatus, error)
	PutDayStatus(ctx context.Context, status *DayStatus) error
}

// Service answers availability questions and manages leave records.
type Service struct {
	store    leaveStore
	location *time.Location
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a schedule service.
func NewService(store leaveStore, location *time.Location, logger *logging.Logger) *Service {
	if store == nil {
		panic("schedule: store cannot be nil")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() string {
	return s.now().In(s.location).Format(appointments.DateLayout)
}

// Check implements appointments.Availability. The weekly holiday rule is
// evaluated before any store read; a leave record closes the date with its
// stored message.
func (s *Service) Check(ctx context.Context, date string) (*appointments.Closure, error) {
	day, err := time.ParseInLocation(appointments.DateLayout, date, s.location)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid date %q: %w", date, err)
	}
	if day.Weekday() == WeeklyHoliday {
		return &appointments.Closure{
			Holiday: true,
			Message: "The clinic is closed on Sundays",
		}, nil
	}
	record, err := s.store.GetLeave(ctx, date)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return &appointments.Closure{Message: record.Message}, nil
	}
	return nil, nil
}

// SetLeave records the doctor as unavailable on a date.
func (s *Service) SetLeave(ctx context.Context, date, message string) (*LeaveRecord, error) {
	if _, err := time.ParseInLocation(appointments.DateLayout, date, s.location); err != nil {
		return nil, fmt.Errorf("schedule: invalid date %q: %w", date, err)
	}
	record := &LeaveRecord{
		Date:      date,
		Message:   message,
		CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.SetLeave(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("leave set", "date", date)
	return record, nil
}

// RemoveLeave makes a date available again.
func (s *Service) RemoveLeave(ctx context.Context, date string) error {
	if err := s.store.RemoveLeave(ctx, date); err != nil {
		return err
	}
	s.logger.Info("leave removed", "date", date)
	return nil
}

// ListLeaves returns every recorded leave date.
func (s *Service) ListLeaves(ctx context.Context) ([]LeaveRecord, error) {
	return s.store.ListLeaves(ctx)
}

// TodayStatus returns the legacy toggle state, creating the singleton on
// first read. The reported state is sourced from today's leave record, which
// is authoritative.
func (s *Service) TodayStatus(ctx context.Context) (*DayStatus, error) {
	status, err := s.store.GetDayStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = &DayStatus{OnLeave: false}
		if err := s.store.PutDayStatus(ctx, status); err != nil {
			return nil, err
		}
	}

	record, err := s.store.GetLeave(ctx, s.today())
	if err != nil {
		return nil, err
	}
	status.OnLeave = record != nil
	if record != nil {
		status.Message = record.Message
	}
	return status, nil
}

// SetTodayStatus flips the legacy toggle. The write goes through to today's
// leave record so date-based availability checks see the same state.
func (s *Service) SetTodayStatus(ctx context.Context, onLeave bool, message string) (*DayStatus, error) {
	today := s.today()
	if onLeave {
		if message == "" {
			message = DefaultLeaveMessage
		}
		if _, err := s.SetLeave(ctx, today, message); err != nil {
			return nil, err
		}
	} else {
		if err := s.RemoveLeave(ctx, today); err != nil {
			return nil, err
		}
		message = ""
	}

	status := &DayStatus{OnLeave: onLeave, Message: message}
	if err := s.store.PutDayStatus(ctx, status); err != nil {
		return nil, err
	}
	s.logger.Info("today status toggled", "on_leave", onLeave)
	return status, nil
}
