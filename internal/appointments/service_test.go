package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanmugaclinic/clinic-platform/internal/events"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// fakeStore is an in-memory recordStore with the same uniqueness and
// counter semantics as the DynamoDB store.
type fakeStore struct {
	appts    map[string]*Appointment
	counters map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appts:    make(map[string]*Appointment),
		counters: make(map[string]int),
	}
}

func (f *fakeStore) NextQueueNumber(_ context.Context, date string) (int, error) {
	f.counters[date]++
	return f.counters[date], nil
}

func (f *fakeStore) Create(_ context.Context, appt *Appointment) error {
	copied := *appt
	f.appts[appt.ID] = &copied
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Appointment, error) {
	appt, ok := f.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (f *fakeStore) ByDate(_ context.Context, date string) ([]Appointment, error) {
	var results []Appointment
	for _, appt := range f.appts {
		if appt.Date == date {
			results = append(results, *appt)
		}
	}
	return results, nil
}

func (f *fakeStore) ListRecent(_ context.Context, limit int) ([]Appointment, error) {
	var results []Appointment
	for _, appt := range f.appts {
		results = append(results, *appt)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, from, to Status) error {
	appt, ok := f.appts[id]
	if !ok || appt.Status != from {
		return ErrInvalidTransition
	}
	appt.Status = to
	return nil
}

func (f *fakeStore) Cancel(_ context.Context, appt *Appointment) error {
	stored, ok := f.appts[appt.ID]
	if !ok || stored.Status != appt.Status {
		return ErrInvalidTransition
	}
	stored.Status = StatusCancelled
	return nil
}

// fakeAvailability returns a fixed closure per date.
type fakeAvailability struct {
	closures map[string]*Closure
	err      error
}

func (f *fakeAvailability) Check(_ context.Context, date string) (*Closure, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.closures == nil {
		return nil, nil
	}
	return f.closures[date], nil
}

type capturePublisher struct {
	published []events.AppointmentBookedV1
	err       error
}

func (c *capturePublisher) PublishBooked(_ context.Context, evt events.AppointmentBookedV1) error {
	c.published = append(c.published, evt)
	return c.err
}

type countingNotifier struct{ changes int }

func (c *countingNotifier) QueueChanged() { c.changes++ }

var testClock = func() time.Time {
	return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
}

func newTestService(store *fakeStore, avail Availability, opts ...ServiceOption) *Service {
	if avail == nil {
		avail = &fakeAvailability{}
	}
	opts = append([]ServiceOption{WithClock(testClock)}, opts...)
	return NewService(store, avail, "Dr. Saravanan", time.UTC, logging.Default(), opts...)
}

func validRequest() BookingRequest {
	return BookingRequest{
		Name:  "Lakshmi Devi",
		Phone: "9876543210",
		Date:  "2026-09-01",
		Time:  "07:10 PM",
	}
}

func TestService_Book_Success(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	appt, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, 1, appt.QueueNumber)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "Dr. Saravanan", appt.Doctor)
	assert.NotEmpty(t, appt.CreatedAt)
}

func TestService_Book_TrimsAndValidatesInput(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	req := validRequest()
	req.Name = "  Lakshmi Devi  "
	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Lakshmi Devi", appt.Name)

	cases := map[string]BookingRequest{
		"missing name":  {Phone: "1", Date: "2026-09-02", Time: "07:00 PM"},
		"missing phone": {Name: "A", Date: "2026-09-02", Time: "07:00 PM"},
		"bad date":      {Name: "A", Phone: "1", Date: "01-09-2026", Time: "07:00 PM"},
		"past date":     {Name: "A", Phone: "1", Date: "2026-08-31", Time: "07:00 PM"},
		"bad slot":      {Name: "A", Phone: "1", Date: "2026-09-02", Time: "06:00 PM"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_Book_ClosedDates(t *testing.T) {
	store := newFakeStore()
	avail := &fakeAvailability{closures: map[string]*Closure{
		"2026-09-06": {Holiday: true, Message: "The clinic is closed on Sundays"},
		"2026-09-02": {Message: "Doctor attending a conference"},
	}}
	svc := newTestService(store, avail)

	req := validRequest()
	req.Date = "2026-09-06"
	_, err := svc.Book(context.Background(), req)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonHoliday, rej.Reason)

	req.Date = "2026-09-02"
	_, err = svc.Book(context.Background(), req)
	rej, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDoctorUnavailable, rej.Reason)
	assert.Equal(t, "Doctor attending a conference", rej.Message)
}

func TestService_Book_DuplicateChecksRunInOrder(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	first := validRequest()
	_, err := svc.Book(context.Background(), first)
	require.NoError(t, err)

	// Same phone, same slot: the phone check fires first.
	req := first
	req.Name = "Someone Else"
	_, err = svc.Book(context.Background(), req)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDuplicatePhone, rej.Reason)

	// Same name (case-insensitive), same slot: name fires before slot.
	req = first
	req.Name = "LAKSHMI DEVI"
	req.Phone = "1111111111"
	_, err = svc.Book(context.Background(), req)
	rej, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonDuplicateName, rej.Reason)

	// Fresh identity, taken slot.
	req = first
	req.Name = "Another Patient"
	req.Phone = "2222222222"
	_, err = svc.Book(context.Background(), req)
	rej, ok = AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSlotTaken, rej.Reason)
}

func TestService_Book_CancelledRecordsDoNotConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	first, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), first.ID)
	require.NoError(t, err)

	// Identical request now succeeds, with a fresh queue number.
	second, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, second.QueueNumber)
}

func TestService_Book_QueueNumbersNeverReissued(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	var issued []int
	for i, slot := range []string{"07:00 PM", "07:10 PM", "07:20 PM"} {
		req := validRequest()
		req.Name = "Patient " + slot
		req.Phone = "900000000" + string(rune('0'+i))
		req.Time = slot
		appt, err := svc.Book(context.Background(), req)
		require.NoError(t, err)
		issued = append(issued, appt.QueueNumber)
		if i == 1 {
			_, err = svc.Cancel(context.Background(), appt.ID)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, issued)
}

func TestService_Book_NotifiesAndPublishes(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	notifier := &countingNotifier{}
	svc := newTestService(store, nil, WithPublisher(pub), WithChangeNotifier(notifier))

	req := validRequest()
	req.Source = "qr"
	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	evt := pub.published[0]
	assert.Equal(t, appt.ID, evt.AppointmentID)
	assert.Equal(t, "qr", evt.Source)
	assert.Equal(t, appt.QueueNumber, evt.QueueNumber)
	assert.Equal(t, 1, notifier.changes)
}

func TestService_Book_PublishFailureDoesNotFailBooking(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{err: errors.New("queue down")}
	svc := newTestService(store, nil, WithPublisher(pub))

	_, err := svc.Book(context.Background(), validRequest())
	assert.NoError(t, err)
}

func TestService_BookedTimes_SkipsCancelled(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	first, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Name = "Second Patient"
	req.Phone = "1111111111"
	req.Time = "07:20 PM"
	_, err = svc.Book(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), first.ID)
	require.NoError(t, err)

	times, err := svc.BookedTimes(context.Background(), "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"07:20 PM"}, times)
}

func TestService_Advance_StateMachine(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil)

	appt, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)

	updated, err := svc.Advance(context.Background(), appt.ID, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)

	updated, err = svc.Advance(context.Background(), appt.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completed is terminal.
	_, err = svc.Advance(context.Background(), appt.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Backwards moves are forbidden.
	_, err = svc.Advance(context.Background(), appt.ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_Advance_UnknownAppointment(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	_, err := svc.Advance(context.Background(), "missing", StatusInProgress)
	assert.ErrorIs(t, err, ErrNotFound)
}

// fakeCache remembers snapshots per date.
type fakeCache struct {
	snapshots   map[string]*QueueSnapshot
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]*QueueSnapshot)}
}

func (f *fakeCache) Get(_ context.Context, date string) (*QueueSnapshot, error) {
	return f.snapshots[date], nil
}

func (f *fakeCache) Set(_ context.Context, snapshot *QueueSnapshot) error {
	f.snapshots[snapshot.Date] = snapshot
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, date string) error {
	f.invalidated = append(f.invalidated, date)
	delete(f.snapshots, date)
	return nil
}

func TestService_TodayQueue_UsesCache(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	svc := newTestService(store, nil, WithSnapshotCache(cache))

	_, err := svc.Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-09-01"}, cache.invalidated)

	snapshot, err := svc.TodayQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Entries, 1)

	// Second read comes from the cache even if the store changes under it.
	store.appts = map[string]*Appointment{}
	cached, err := svc.TodayQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached.Entries, 1)
}
