package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

const dateIndex = "date-index"

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store persists appointment records to DynamoDB.
//
// Besides the appointment items themselves the table carries two kinds of
// bookkeeping items, neither of which has a "date" attribute so they never
// appear in the date index:
//
//   - COUNTER#<date>   per-date queue sequence, bumped atomically
//   - LOCK#<date>#...  uniqueness guards for (date,time), (date,phone)
//     and (date,name), written in the same transaction as the appointment
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func counterKey(date string) string {
	return "COUNTER#" + date
}

func slotLockKey(date, slot string) string {
	return "LOCK#" + date + "#time#" + slot
}

func phoneLockKey(date, phone string) string {
	return "LOCK#" + date + "#phone#" + phone
}

func nameLockKey(date, name string) string {
	return "LOCK#" + date + "#name#" + strings.ToLower(strings.TrimSpace(name))
}

// NextQueueNumber atomically increments and returns the queue sequence for
// the given date. Numbers are strictly increasing in creation order; a
// cancelled appointment leaves a permanent gap.
func (s *Store) NextQueueNumber(ctx context.Context, date string) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: counterKey(date)},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("appointments: failed to advance queue counter: %w", err)
	}
	attr, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("appointments: queue counter returned no sequence for %s", date)
	}
	n, err := strconv.Atoi(attr.Value)
	if err != nil {
		return 0, fmt.Errorf("appointments: queue counter returned %q: %w", attr.Value, err)
	}
	return n, nil
}

// Create persists a new appointment together with its uniqueness locks in a
// single transaction. If another writer already holds one of the locks the
// returned error is a *RejectionError naming the violated rule.
func (s *Store) Create(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return errors.New("appointments: appointment cannot be nil")
	}
	if appt.CreatedAt == "" {
		appt.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}

	lock := func(id string) *types.Put {
		return &types.Put{
			TableName: aws.String(s.tableName),
			Item: map[string]types.AttributeValue{
				"id":     &types.AttributeValueMemberS{Value: id},
				"apptId": &types.AttributeValueMemberS{Value: appt.ID},
			},
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		}
	}

	// Item order matters: cancellation reasons come back index-aligned.
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			{Put: lock(slotLockKey(appt.Date, appt.Time))},
			{Put: lock(phoneLockKey(appt.Date, appt.Phone))},
			{Put: lock(nameLockKey(appt.Date, appt.Name))},
		},
	})
	if err != nil {
		if rej := rejectionFromCancellation(err); rej != nil {
			return rej
		}
		return fmt.Errorf("appointments: failed to persist appointment: %w", err)
	}
	return nil
}

// rejectionFromCancellation maps a transaction cancellation back to the
// business rule whose lock item already existed.
func rejectionFromCancellation(err error) *RejectionError {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil
	}
	for i, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		switch i {
		case 1:
			return reject(ReasonSlotTaken, "This time slot is already booked")
		case 2:
			return reject(ReasonDuplicatePhone, "An appointment already exists for this phone number on this date")
		case 3:
			return reject(ReasonDuplicateName, "An appointment already exists under this name on this date")
		}
	}
	return nil
}

// Get fetches a single appointment by ID.
func (s *Store) Get(ctx context.Context, id string) (*Appointment, error) {
	if id == "" {
		return nil, errors.New("appointments: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch appointment: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
	}
	return &appt, nil
}

// ByDate returns every appointment booked for the given date, sorted by
// queue number ascending.
func (s *Store) ByDate(ctx context.Context, date string) ([]Appointment, error) {
	if date == "" {
		return nil, errors.New("appointments: date required")
	}
	var results []Appointment
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(dateIndex),
			KeyConditionExpression: aws.String("#date = :date"),
			ExpressionAttributeNames: map[string]string{
				"#date": "date",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":date": &types.AttributeValueMemberS{Value: date},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("appointments: failed to query date %s: %w", date, err)
		}
		var page []Appointment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("appointments: failed to decode appointments: %w", err)
		}
		results = append(results, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].QueueNumber < results[j].QueueNumber
	})
	return results, nil
}

// ListRecent returns up to limit appointments across all dates, newest
// first. Ordering is applied client-side, matching how the admin dashboard
// consumes the collection.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var results []Appointment
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("attribute_exists(#date)"),
			ExpressionAttributeNames: map[string]string{
				"#date": "date",
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("appointments: failed to scan appointments: %w", err)
		}
		var page []Appointment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("appointments: failed to decode appointments: %w", err)
		}
		results = append(results, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt > results[j].CreatedAt
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// UpdateStatus moves an appointment from one status to another. The write is
// conditional on the current status so concurrent transitions cannot clobber
// each other.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	if id == "" {
		return errors.New("appointments: id required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #status = :to"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":from": &types.AttributeValueMemberS{Value: string(from)},
		},
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :from"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("appointments: failed to update status of %s: %w", id, err)
	}
	return nil
}

// Cancel marks the appointment Cancelled and releases its uniqueness locks
// so the slot can be booked again. The record itself is never deleted and
// its queue number is never reissued.
func (s *Store) Cancel(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return errors.New("appointments: appointment cannot be nil")
	}
	del := func(id string) *types.Delete {
		return &types.Delete{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberS{Value: id},
			},
		}
	}
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: appt.ID},
				},
				UpdateExpression: aws.String("SET #status = :cancelled"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cancelled": &types.AttributeValueMemberS{Value: string(StatusCancelled)},
					":current":   &types.AttributeValueMemberS{Value: string(appt.Status)},
				},
				ConditionExpression: aws.String("attribute_exists(id) AND #status = :current"),
			}},
			{Delete: del(slotLockKey(appt.Date, appt.Time))},
			{Delete: del(phoneLockKey(appt.Date, appt.Phone))},
			{Delete: del(nameLockKey(appt.Date, appt.Name))},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("appointments: failed to cancel %s: %w", appt.ID, err)
	}
	return nil
}
