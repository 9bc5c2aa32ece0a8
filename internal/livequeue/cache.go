package livequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
)

// SnapshotCache keeps the last computed queue projection in Redis so fresh
// websocket connects and queue polls do not hit the store on every call. A
// short TTL bounds staleness even if an invalidation is lost.
type SnapshotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewSnapshotCache builds a cache around the provided Redis client.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *SnapshotCache {
	if client == nil {
		panic("livequeue: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.livequeue.cache")
	}
	return &SnapshotCache{
		redis:  client,
		ttl:    ttl,
		tracer: tracer,
	}
}

func snapshotKey(date string) string {
	return fmt.Sprintf("queue_snapshot:%s", date)
}

// Get returns the cached snapshot for a date, or nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, date string) (*appointments.QueueSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "livequeue.cache_get")
	defer span.End()

	data, err := c.redis.Get(ctx, snapshotKey(date)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("livequeue: failed to load snapshot: %w", err)
	}

	var snapshot appointments.QueueSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("livequeue: failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// Set stores a snapshot under its date key.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *appointments.QueueSnapshot) error {
	if snapshot == nil {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "livequeue.cache_set")
	defer span.End()

	data, err := json.Marshal(snapshot)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("livequeue: failed to marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, snapshotKey(snapshot.Date), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("livequeue: failed to persist snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for a date.
func (c *SnapshotCache) Invalidate(ctx context.Context, date string) error {
	ctx, span := c.tracer.Start(ctx, "livequeue.cache_invalidate")
	defer span.End()

	if err := c.redis.Del(ctx, snapshotKey(date)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("livequeue: failed to invalidate snapshot: %w", err)
	}
	return nil
}

var _ appointments.SnapshotCache = (*SnapshotCache)(nil)
