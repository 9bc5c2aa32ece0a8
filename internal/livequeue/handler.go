package livequeue

import (
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

// Handler serves the live queue over a websocket: the current snapshot on
// connect, then every update until the client goes away.
type Handler struct {
	hub    *Hub
	source SnapshotSource
	logger *logging.Logger
}

// NewHandler creates a live queue websocket handler.
func NewHandler(hub *Hub, source SnapshotSource, logger *logging.Logger) *Handler {
	if hub == nil {
		panic("livequeue: hub cannot be nil")
	}
	if source == nil {
		panic("livequeue: snapshot source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:    hub,
		source: source,
		logger: logger,
	}
}

// Live returns the websocket endpoint.
func (h *Handler) Live() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	snapshot, err := h.source(ctx)
	if err != nil {
		h.logger.Error("live queue: initial snapshot failed", "error", err)
		return
	}
	if err := h.send(conn, snapshot); err != nil {
		return
	}

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	// Drain client frames so we notice a closed connection.
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update == nil {
				continue
			}
			if err := h.send(conn, update); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("live queue: failed to marshal snapshot", "error", err)
		return err
	}
	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return err
	}
	return nil
}
