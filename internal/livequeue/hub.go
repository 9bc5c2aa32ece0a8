package livequeue

import (
	"context"
	"sync"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// SnapshotSource recomputes the current queue projection.
type SnapshotSource func(ctx context.Context) (*appointments.QueueSnapshot, error)

// Hub fans the live queue projection out to subscribers. Delivery is
// most-recent-state-wins: each subscriber channel holds at most one pending
// snapshot, and a slow subscriber never blocks a mutation or other
// subscribers.
type Hub struct {
	source SnapshotSource
	logger *logging.Logger

	trigger chan struct{}

	mu     sync.Mutex
	nextID int
	subs   map[int]chan *appointments.QueueSnapshot
	latest *appointments.QueueSnapshot
}

// NewHub creates a hub around the given projection source. The source may
// be nil at construction to break the wiring cycle with the booking
// service; it must be set with SetSource before Start.
func NewHub(source SnapshotSource, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		source:  source,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		subs:    make(map[int]chan *appointments.QueueSnapshot),
	}
}

// SetSource installs the projection source. Must be called before Start.
func (h *Hub) SetSource(source SnapshotSource) {
	h.source = source
}

// Start runs the recompute loop until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	if h.source == nil {
		panic("livequeue: snapshot source cannot be nil")
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.trigger:
				h.refresh(ctx)
			}
		}
	}()
}

// QueueChanged requests a recompute. Safe to call from any goroutine; calls
// arriving while a recompute is pending coalesce into one.
func (h *Hub) QueueChanged() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Subscribe registers a listener. The returned channel immediately carries
// the latest known snapshot, if any. Call the cancel function to release
// the subscription.
func (h *Hub) Subscribe() (<-chan *appointments.QueueSnapshot, func()) {
	ch := make(chan *appointments.QueueSnapshot, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	if h.latest != nil {
		ch <- h.latest
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) refresh(ctx context.Context) {
	snapshot, err := h.source(ctx)
	if err != nil {
		h.logger.Error("failed to recompute queue snapshot", "error", err)
		return
	}
	h.broadcast(snapshot)
}

func (h *Hub) broadcast(snapshot *appointments.QueueSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = snapshot
	for _, ch := range h.subs {
		// Drop the stale pending snapshot, if any, then deliver the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

var _ appointments.ChangeNotifier = (*Hub)(nil)
