package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

type fakeLister struct {
	records []appointments.Appointment
	err     error
}

func (f *fakeLister) ByDate(_ context.Context, date string) ([]appointments.Appointment, error) {
	return f.records, f.err
}

func dayRecords() []appointments.Appointment {
	return []appointments.Appointment{
		{ID: "appt-1", Name: "Lakshmi Devi", Phone: "9876543210", Date: "2026-09-01", Time: "07:10 PM", QueueNumber: 1, Status: appointments.StatusCompleted},
		{ID: "appt-2", Name: "Murugan S", Phone: "9876501234", Date: "2026-09-01", Time: "07:20 PM", QueueNumber: 2, Status: appointments.StatusCompleted},
	}
}

func TestStore_ExportDay(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, &fakeLister{records: dayRecords()}, "clinic-archive", nil)
	store.now = func() time.Time { return time.Date(2026, 9, 1, 16, 30, 0, 0, time.UTC) }

	export, err := store.ExportDay(context.Background(), "2026-09-01")
	require.NoError(t, err)
	require.NotNil(t, export)
	assert.Equal(t, 2, export.Count)
	assert.Equal(t, "2026-09-01", export.Date)

	// Two PutObject calls: day export + manifest.
	require.Len(t, mock.putCalls, 2)
	assert.Equal(t, "clinic-archive", mock.putCalls[0].bucket)
	assert.Equal(t, "appointments/v1/by-date/2026/09/01.json", mock.putCalls[0].key)

	var decoded DayExport
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Equal(t, "2026-09-01", decoded.Date)
	require.Len(t, decoded.Appointments, 2)
	assert.Equal(t, "appt-1", decoded.Appointments[0].ID)

	assert.Equal(t, "appointments/v1/manifests/2026-09.jsonl", mock.putCalls[1].key)
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry))
	assert.Equal(t, "2026-09-01", entry.Date)
	assert.Equal(t, "appointments/v1/by-date/2026/09/01.json", entry.S3Key)
	assert.Equal(t, 2, entry.Count)
}

func TestStore_ExportDay_AppendsToExistingManifest(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, &fakeLister{records: dayRecords()}, "clinic-archive", nil)

	_, err := store.ExportDay(context.Background(), "2026-09-01")
	require.NoError(t, err)
	_, err = store.ExportDay(context.Background(), "2026-09-02")
	require.NoError(t, err)

	manifest := mock.objects["appointments/v1/manifests/2026-09.jsonl"]
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	require.Len(t, lines, 2)

	var first, second ManifestEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "2026-09-01", first.Date)
	assert.Equal(t, "2026-09-02", second.Date)
}

func TestStore_ExportDay_InvalidDate(t *testing.T) {
	store := NewStore(newMockS3(), &fakeLister{}, "clinic-archive", nil)
	_, err := store.ExportDay(context.Background(), "01/09/2026")
	assert.Error(t, err)
}

func TestStore_ExportDay_ListerFailure(t *testing.T) {
	store := NewStore(newMockS3(), &fakeLister{err: errors.New("dynamo down")}, "clinic-archive", nil)
	_, err := store.ExportDay(context.Background(), "2026-09-01")
	assert.Error(t, err)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, &fakeLister{}, "", nil)
	assert.False(t, store.Enabled())

	export, err := store.ExportDay(context.Background(), "2026-09-01")
	assert.NoError(t, err)
	assert.Nil(t, export)
}
