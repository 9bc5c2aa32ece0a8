package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shanmugaclinic/clinic-platform/internal/admin"
	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/internal/schedule"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// memStore keeps appointments in memory with the same locking semantics
// as the DynamoDB store.
type memStore struct {
	mu       sync.Mutex
	records  map[string]appointments.Appointment
	counters map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[string]appointments.Appointment),
		counters: make(map[string]int),
	}
}

func (m *memStore) NextQueueNumber(_ context.Context, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[date]++
	return m.counters[date], nil
}

func (m *memStore) Create(_ context.Context, appt *appointments.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[appt.ID] = *appt
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*appointments.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.records[id]
	if !ok {
		return nil, appointments.ErrNotFound
	}
	return &appt, nil
}

func (m *memStore) ByDate(_ context.Context, date string) ([]appointments.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []appointments.Appointment
	for _, appt := range m.records {
		if appt.Date == date {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

func (m *memStore) ListRecent(_ context.Context, limit int) ([]appointments.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]appointments.Appointment, 0, len(m.records))
	for _, appt := range m.records {
		out = append(out, appt)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to appointments.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.records[id]
	if !ok || appt.Status != from {
		return appointments.ErrInvalidTransition
	}
	appt.Status = to
	m.records[id] = appt
	return nil
}

func (m *memStore) Cancel(_ context.Context, appt *appointments.Appointment) error {
	return m.UpdateStatus(context.Background(), appt.ID, appt.Status, appointments.StatusCancelled)
}

// memLeaveStore backs the schedule service in router tests.
type memLeaveStore struct {
	mu     sync.Mutex
	leaves map[string]schedule.LeaveRecord
	status *schedule.DayStatus
}

func newMemLeaveStore() *memLeaveStore {
	return &memLeaveStore{leaves: make(map[string]schedule.LeaveRecord)}
}

func (m *memLeaveStore) GetLeave(_ context.Context, date string) (*schedule.LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.leaves[date]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memLeaveStore) SetLeave(_ context.Context, record *schedule.LeaveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[record.Date] = *record
	return nil
}

func (m *memLeaveStore) RemoveLeave(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leaves, date)
	return nil
}

func (m *memLeaveStore) ListLeaves(_ context.Context) ([]schedule.LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schedule.LeaveRecord, 0, len(m.leaves))
	for _, rec := range m.leaves {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memLeaveStore) GetDayStatus(_ context.Context) (*schedule.DayStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, nil
}

func (m *memLeaveStore) PutDayStatus(_ context.Context, status *schedule.DayStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	clock := func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	}

	scheduleService := schedule.NewService(newMemLeaveStore(), time.UTC, logger).WithClock(clock)
	apptService := appointments.NewService(newMemStore(), scheduleService, "Dr. Saravanan", time.UTC, logger,
		appointments.WithClock(clock))

	cfg := &Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(apptService, logger),
		ScheduleHandler:     schedule.NewHandler(scheduleService, logger),
		AdminAuthHandler:    admin.NewHandler("letmein", "test-secret", time.Hour, logger),
		AdminAuthSecret:     "test-secret",
		PublicBaseURL:       "https://booking.example.com/book",
	}

	return New(cfg)
}

func adminToken(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader([]byte(`{"password":"letmein"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp.Token
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterBookingEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := []byte(`{"name":"Lakshmi Devi","phone":"9876543210","date":"2026-09-01","time":"07:10 PM"}`)
	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	var appt appointments.Appointment
	if err := json.NewDecoder(rr.Body).Decode(&appt); err != nil {
		t.Fatalf("failed to decode booking response: %v", err)
	}
	if appt.QueueNumber != 1 {
		t.Errorf("expected queue number 1, got %d", appt.QueueNumber)
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterAdminWithToken(t *testing.T) {
	router := newTestRouter(t)
	token := adminToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestRouterAdminLeaveLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := adminToken(t, router)

	setReq := httptest.NewRequest(http.MethodPost, "/admin/leaves",
		bytes.NewReader([]byte(`{"date":"2026-09-03","message":"Doctor at a conference"}`)))
	setReq.Header.Set("Authorization", "Bearer "+token)
	setRR := httptest.NewRecorder()
	router.ServeHTTP(setRR, setReq)
	if setRR.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, setRR.Code, setRR.Body.String())
	}

	// Bookings for the leave day are rejected.
	bookReq := httptest.NewRequest(http.MethodPost, "/appointments",
		bytes.NewReader([]byte(`{"name":"Murugan S","phone":"9876501234","date":"2026-09-03","time":"07:10 PM"}`)))
	bookRR := httptest.NewRecorder()
	router.ServeHTTP(bookRR, bookReq)
	if bookRR.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, bookRR.Code, bookRR.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/admin/leaves/2026-09-03", nil)
	delReq.Header.Set("Authorization", "Bearer "+token)
	delRR := httptest.NewRecorder()
	router.ServeHTTP(delRR, delReq)
	if delRR.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, delRR.Code)
	}
}

func TestRouterQRRedirect(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/qr", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, rr.Code)
	}
	loc := rr.Header().Get("Location")
	want := "https://booking.example.com/book?source=qr"
	if loc != want {
		t.Errorf("expected redirect to %q, got %q", want, loc)
	}
}

func TestRouterDoctorStatusIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/doctor-status", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestRouterBookingRateLimit(t *testing.T) {
	logger := logging.Default()
	clock := func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }
	scheduleService := schedule.NewService(newMemLeaveStore(), time.UTC, logger).WithClock(clock)
	apptService := appointments.NewService(newMemStore(), scheduleService, "Dr. Saravanan", time.UTC, logger,
		appointments.WithClock(clock))
	router := New(&Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(apptService, logger),
		ScheduleHandler:     schedule.NewHandler(scheduleService, logger),
		BookingRateLimit:    1,
		BookingBurst:        1,
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		body := []byte(fmt.Sprintf(`{"name":"Patient %d","phone":"98765432%02d","date":"2026-09-01","time":"07:%d0 PM"}`, i, i, i+1))
		req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewReader(body))
		req.Header.Set("X-Real-Ip", "203.0.113.50")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusCreated {
		t.Fatalf("expected first booking to pass, got %v", codes)
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected second booking to be limited, got %v", codes)
	}
}
