package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type clientGauge interface {
	SetBoardClients(n int)
}

// Client is one subscribed board feed connection.
type Client struct {
	UserID string
	Send   chan []byte

	hub    *Hub
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// Close unregisters the client and signals its write pump to exit. The Send
// channel is never closed, so a broadcast racing a disconnect lands in the
// buffer of a drained channel instead of panicking. Safe to call more than
// once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// Hub maintains the set of subscribed board feed clients and fans events out
// to them. Slow clients whose send buffer is full miss the event rather than
// blocking the rest; they reconcile from the REST listing on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
	metrics clientGauge
	bufSize int
}

// NewHub constructs a board feed hub. bufSize is the per-client send buffer.
func NewHub(logger *zap.Logger, metrics clientGauge, bufSize int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: metrics,
		bufSize: bufSize,
	}
}

// Register subscribes a new client for the given user.
func (h *Hub) Register(userID string) *Client {
	c := &Client{
		UserID: userID,
		Send:   make(chan []byte, h.bufSize),
		hub:    h,
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetBoardClients(count)
	}
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetBoardClients(count)
	}
}

// Broadcast fans one board event out to every subscribed client.
func (h *Hub) Broadcast(event models.BoardEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("board event marshal failed", zap.String("event", event.Event), zap.Error(err))
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn("board client send buffer full, dropping event",
				zap.String("user_id", c.UserID), zap.String("event", event.Event))
		}
	}
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the read and write pumps for an upgraded connection and blocks
// until the peer goes away.
func (h *Hub) Serve(client *Client, conn *websocket.Conn) {
	defer client.Close()
	go writePump(client, conn)
	readPump(conn)
}

// writePump copies events from the client's send channel to the connection
// and keeps the peer alive with pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case msg := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection. The feed is one-way; inbound frames only
// service the pong handler.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
