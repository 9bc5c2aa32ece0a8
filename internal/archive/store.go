package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Lister loads the appointments recorded for a clinic day.
type Lister interface {
	ByDate(ctx context.Context, date string) ([]appointments.Appointment, error)
}

// DayExport is the JSON document written to S3 for one clinic day.
type DayExport struct {
	Date         string                     `json:"date"`
	Appointments []appointments.Appointment `json:"appointments"`
	Count        int                        `json:"count"`
	ExportedAt   string                     `json:"exportedAt"`
}

// ManifestEntry is one JSONL line in the monthly export manifest.
type ManifestEntry struct {
	Date       string `json:"date"`
	S3Key      string `json:"s3Key"`
	Count      int    `json:"count"`
	ExportedAt string `json:"exportedAt"`
}

// Store exports finished clinic days to S3 for record keeping.
type Store struct {
	bucket   string
	s3Client S3API
	lister   Lister
	logger   *logging.Logger

	now func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, lister Lister, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		s3Client: s3Client,
		lister:   lister,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ExportDay writes every appointment for the given date as one JSON
// document and appends to the monthly manifest.
func (s *Store) ExportDay(ctx context.Context, date string) (*DayExport, error) {
	if !s.Enabled() {
		return nil, nil
	}

	day, err := time.Parse(appointments.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("archive: parse date %q: %w", date, err)
	}

	records, err := s.lister.ByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("archive: load appointments for %s: %w", date, err)
	}

	export := &DayExport{
		Date:         date,
		Appointments: records,
		Count:        len(records),
		ExportedAt:   s.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal export: %w", err)
	}

	s3Key := fmt.Sprintf("appointments/v1/by-date/%d/%02d/%02d.json",
		day.Year(), day.Month(), day.Day())

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived clinic day to S3",
		"date", date,
		"s3_key", s3Key,
		"appointment_count", len(records),
	)

	entry := ManifestEntry{
		Date:       date,
		S3Key:      s3Key,
		Count:      len(records),
		ExportedAt: export.ExportedAt,
	}
	if err := s.appendManifest(ctx, day, entry); err != nil {
		// The day export itself succeeded; the manifest can be rebuilt.
		s.logger.Warn("failed to append manifest", "error", err, "date", date)
	}

	return export, nil
}

// appendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) appendManifest(ctx context.Context, day time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	manifestKey := fmt.Sprintf("appointments/v1/manifests/%d-%02d.jsonl", day.Year(), day.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		if !isNotFoundErr(err) {
			return fmt.Errorf("archive: s3 get manifest: %w", err)
		}
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// isNotFoundErr checks if the error is an S3 NoSuchKey error.
func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
