package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestHub_BroadcastsReadings(t *testing.T) {
	common.SetTestLoggerNop()
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()
	defer hub.Close()

	all := dial(t, server, "")
	only := dial(t, server, "?device_id=d2")
	waitForClients(t, hub, 2)

	temp := 21.0
	hub.Publish(context.Background(), models.Device{ID: "d1", Name: "one"}, models.Reading{ID: 1, DeviceID: "d1", Temperature: &temp})
	hub.Publish(context.Background(), models.Device{ID: "d2", Name: "two"}, models.Reading{ID: 2, DeviceID: "d2", Temperature: &temp})

	first := readEvent(t, all)
	assert.Equal(t, "reading", first.Type)
	assert.Equal(t, "d1", first.DeviceID)
	assert.Equal(t, "d2", readEvent(t, all).DeviceID)

	filtered := readEvent(t, only)
	assert.Equal(t, "d2", filtered.DeviceID, "filtered clients skip other devices")
	assert.Equal(t, "two", filtered.DeviceName)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	common.SetTestLoggerNop()
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	// publishing with nobody listening is a no-op
	hub.Publish(context.Background(), models.Device{ID: "d1"}, models.Reading{})
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	common.SetTestLoggerNop()
	hub := NewHub([]string{"http://dashboard.local"})
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_DropsSlowClients(t *testing.T) {
	common.SetTestLoggerNop()
	hub := NewHub(nil)

	// a client with no writer behind it fills up and is dropped
	stuck := &client{send: make(chan []byte, 1)}
	hub.register(stuck)

	hub.Publish(context.Background(), models.Device{ID: "d1"}, models.Reading{})
	assert.Equal(t, 1, hub.Len())
	hub.Publish(context.Background(), models.Device{ID: "d1"}, models.Reading{})
	assert.Equal(t, 0, hub.Len())

	_, open := <-stuck.send
	assert.True(t, open, "buffered message is still readable")
	_, open = <-stuck.send
	assert.False(t, open, "channel closed after drop")
}
