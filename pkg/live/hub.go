package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/metrics"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	sendBuffer = 32
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is one message on the live feed.
type Event struct {
	Type       string         `json:"type"`
	DeviceID   string         `json:"device_id"`
	DeviceName string         `json:"device_name"`
	Reading    models.Reading `json:"reading"`
}

type client struct {
	conn     *websocket.Conn
	deviceID string
	send     chan []byte
}

// Hub fans accepted readings out to dashboards. A client that cannot keep up is dropped
// instead of slowing ingestion.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{clients: make(map[*client]struct{})}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection; ?device_id= narrows the feed to one device.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := common.GetLoggerWith(common.LoggerNameLiveHub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Info("Rejected websocket upgrade", zap.Error(err))
		return
	}

	c := &client{
		conn:     conn,
		deviceID: r.URL.Query().Get("device_id"),
		send:     make(chan []byte, sendBuffer),
	}
	h.register(c)
	logger.Info("Dashboard subscribed", zap.String("device_id", c.deviceID))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveClientConnected()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		metrics.LiveClientDisconnected()
	}
}

// readPump only drains control frames; dashboards never send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish never blocks.
func (h *Hub) Publish(_ context.Context, device models.Device, reading models.Reading) {
	msg, err := json.Marshal(Event{Type: "reading", DeviceID: device.ID, DeviceName: device.Name, Reading: reading})
	if err != nil {
		common.GetLoggerWith(common.LoggerNameLiveHub).Error("Failed to encode live event", zap.Error(err))
		return
	}

	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		if c.deviceID != "" && c.deviceID != device.ID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		common.GetLoggerWith(common.LoggerNameLiveHub).Warn("Dropping slow dashboard")
		h.unregister(c)
	}
}

// Close disconnects every dashboard.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.unregister(c)
	}
}
