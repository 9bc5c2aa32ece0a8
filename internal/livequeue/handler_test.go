package livequeue

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/shanmugaclinic/clinic-platform/internal/appointments"
	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

func dialTest(t *testing.T, hub *Hub, source SnapshotSource) *websocket.Conn {
	t.Helper()
	handler := NewHandler(hub, source, logging.Default())
	server := httptest.NewServer(handler.Live())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, err := websocket.Dial(wsURL, "", server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) *appointments.QueueSnapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var raw string
	require.NoError(t, websocket.Message.Receive(conn, &raw))
	var snapshot appointments.QueueSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snapshot))
	return &snapshot
}

func TestHandler_SendsInitialSnapshotOnConnect(t *testing.T) {
	source := &countingSource{}
	hub := NewHub(source.snapshot, logging.Default())

	conn := dialTest(t, hub, source.snapshot)

	snapshot := readSnapshot(t, conn)
	assert.Equal(t, "2026-09-01", snapshot.Date)
}

func TestHandler_ForwardsHubUpdates(t *testing.T) {
	source := &countingSource{}
	hub := NewHub(source.snapshot, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	conn := dialTest(t, hub, source.snapshot)
	readSnapshot(t, conn)

	hub.QueueChanged()

	update := readSnapshot(t, conn)
	assert.Equal(t, "2026-09-01", update.Date)
}
