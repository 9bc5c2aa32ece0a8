package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store persists leave records and the day-status singleton. Leave records
// live in their own table keyed by date; the singleton lives in a second
// table keyed by a fixed id. All writes are unconditional overwrites or
// deletes, matching the admin contract.
type Store struct {
	client      dynamoAPI
	leavesTable string
	statusTable string
	logger      *logging.Logger
}

// NewStore builds a schedule store on the provided DynamoDB client.
func NewStore(client dynamoAPI, leavesTable, statusTable string, logger *logging.Logger) *Store {
	if client == nil {
		panic("schedule: dynamodb client cannot be nil")
	}
	if leavesTable == "" || statusTable == "" {
		panic("schedule: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:      client,
		leavesTable: leavesTable,
		statusTable: statusTable,
		logger:      logger,
	}
}

// GetLeave returns the leave record for a date, or nil when the doctor is
// available.
func (s *Store) GetLeave(ctx context.Context, date string) (*LeaveRecord, error) {
	if date == "" {
		return nil, errors.New("schedule: date required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.leavesTable),
		Key: map[string]types.AttributeValue{
			"date": &types.AttributeValueMemberS{Value: date},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: failed to fetch leave for %s: %w", date, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var record LeaveRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("schedule: failed to decode leave record: %w", err)
	}
	return &record, nil
}

// SetLeave creates or overwrites the leave record for a date.
func (s *Store) SetLeave(ctx context.Context, record *LeaveRecord) error {
	if record == nil || record.Date == "" {
		return errors.New("schedule: leave record with date required")
	}
	if record.Message == "" {
		record.Message = DefaultLeaveMessage
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("schedule: failed to marshal leave record: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.leavesTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("schedule: failed to persist leave for %s: %w", record.Date, err)
	}
	return nil
}

// RemoveLeave deletes the leave record for a date. Deleting an absent record
// is not an error.
func (s *Store) RemoveLeave(ctx context.Context, date string) error {
	if date == "" {
		return errors.New("schedule: date required")
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.leavesTable),
		Key: map[string]types.AttributeValue{
			"date": &types.AttributeValueMemberS{Value: date},
		},
	}); err != nil {
		return fmt.Errorf("schedule: failed to remove leave for %s: %w", date, err)
	}
	return nil
}

// ListLeaves returns every leave record, sorted by date ascending.
func (s *Store) ListLeaves(ctx context.Context) ([]LeaveRecord, error) {
	var records []LeaveRecord
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.leavesTable),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("schedule: failed to list leave records: %w", err)
		}
		var page []LeaveRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("schedule: failed to decode leave records: %w", err)
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
	return records, nil
}

// GetDayStatus returns the legacy singleton, or nil when it has never been
// written.
func (s *Store) GetDayStatus(ctx context.Context) (*DayStatus, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.statusTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: dayStatusID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: failed to fetch day status: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var status DayStatus
	if err := attributevalue.UnmarshalMap(out.Item, &status); err != nil {
		return nil, fmt.Errorf("schedule: failed to decode day status: %w", err)
	}
	return &status, nil
}

// PutDayStatus overwrites the legacy singleton.
func (s *Store) PutDayStatus(ctx context.Context, status *DayStatus) error {
	if status == nil {
		return errors.New("schedule: status cannot be nil")
	}
	status.ID = dayStatusID
	item, err := attributevalue.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("schedule: failed to marshal day status: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.statusTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("schedule: failed to persist day status: %w", err)
	}
	return nil
}
