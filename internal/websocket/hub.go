package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"massupload/internal/infrastructure"
)

// ErrHubStopped is returned when registering with a stopped hub.
var ErrHubStopped = errors.New("websocket hub stopped")

// Hub tracks connected clients by user and pushes messages to them.
// Delivery never blocks: a client whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	running    bool

	logger  *slog.Logger
	metrics *HubMetrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *HubMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in a goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
	set, ok := h.byUser[c.user]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[c.user] = set
	}
	set[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.totalConnections.Add(1)
	ctx := c.context()
	h.metrics.connected(ctx)
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", c.id),
		slog.String("user", c.user),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", count))

	payload, err := encode(TypeConnection, map[string]string{
		"status":    "connected",
		"client_id": c.id,
		"user":      c.user,
	}, c.traceID)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.WarnContext(ctx, "connection message dropped", slog.String("client_id", c.id))
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.detach(c)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := c.context()
	h.metrics.disconnected(ctx, time.Since(c.connectedAt))
	h.logger.InfoContext(ctx, "client unregistered",
		slog.String("client_id", c.id),
		slog.String("user", c.user),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", count))
}

// detach must be called with h.mu held for writing.
func (h *Hub) detach(c *Client) {
	delete(h.clients, c)
	if set, ok := h.byUser[c.user]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.user)
		}
	}
	close(c.send)
}

// Register adds a client. It fails once the hub is stopped.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.quit:
		return ErrHubStopped
	}
}

// Unregister removes a client and closes its send buffer.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// SendToUser pushes a message to every connection of user and returns how
// many connections received it.
func (h *Hub) SendToUser(ctx context.Context, user, msgType string, data any) int {
	payload, err := encode(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "encoding message failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return 0
	}

	h.mu.RLock()
	sent, dropped := deliver(h.byUser[user], payload)
	h.mu.RUnlock()

	h.account(ctx, msgType, sent, dropped)
	if dropped > 0 {
		h.logger.DebugContext(ctx, "client buffer full, message dropped",
			slog.String("user", user),
			slog.String("type", msgType),
			slog.Int("dropped", dropped))
	}
	return sent
}

// Broadcast pushes a message to every connected client.
func (h *Hub) Broadcast(ctx context.Context, msgType string, data any) int {
	payload, err := encode(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "encoding message failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return 0
	}

	h.mu.RLock()
	sent, dropped := deliver(h.clients, payload)
	h.mu.RUnlock()

	h.account(ctx, msgType, sent, dropped)
	return sent
}

func deliver(clients map[*Client]struct{}, payload []byte) (sent, dropped int) {
	for c := range clients {
		select {
		case c.send <- payload:
			sent++
		default:
			dropped++
		}
	}
	return sent, dropped
}

func (h *Hub) account(ctx context.Context, msgType string, sent, dropped int) {
	h.messagesSent.Add(int64(sent))
	h.messagesDropped.Add(int64(dropped))
	h.metrics.delivered(ctx, msgType, sent, dropped)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections of user.
func (h *Hub) UserClientCount(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[user])
}

// HubStats is a point-in-time view of the hub counters.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	ActiveUsers      int   `json:"active_users"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Stats returns the current counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		ActiveUsers:      len(h.byUser),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Stop ends the hub loop and closes every client's send buffer, which
// makes the write pumps send a close frame.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)
	for c := range h.clients {
		h.detach(c)
	}
}
