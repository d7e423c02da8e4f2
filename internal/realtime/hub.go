// Package realtime fans events out to websocket clients across instances.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

// Channel is the Redis pub/sub channel shared by all instances.
const Channel = "realtime:events"

// PublishTimeout bounds the Redis publish in the request path.
const PublishTimeout = 200 * time.Millisecond

// Presence tracks which users hold a live connection.
type Presence interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// envelope carries an encoded event between instances.
type envelope struct {
	Origin string          `json:"o"`
	UserID string          `json:"u"`
	Event  json.RawMessage `json:"e"`
}

// Hub tracks local websocket clients by user.
type Hub struct {
	mu            sync.RWMutex
	clientsByUser map[string]map[*Client]struct{}
	connections   int
	closed        bool

	redis    *redis.Client
	presence Presence
	metrics  metrics.Recorder
	logger   *slog.Logger
	origin   string
}

// NewHub creates a hub. A nil Redis client keeps fan-out local to this
// instance; a nil presence disables presence tracking.
func NewHub(client *redis.Client, presence Presence, logger *slog.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clientsByUser: make(map[string]map[*Client]struct{}),
		redis:         client,
		presence:      presence,
		metrics:       recorder,
		logger:        logger.With("component", "realtime.hub"),
		origin:        uuid.NewString(),
	}
}

// Publish delivers event to every connection of userID on every instance.
func (h *Hub) Publish(ctx context.Context, userID string, event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return
	}
	h.deliver(userID, data)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{Origin: h.origin, UserID: userID, Event: data})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := h.redis.Publish(ctx, Channel, payload).Err(); err != nil {
		h.logger.Warn("failed to fan out event", "type", event.Type, "error", err)
	}
}

// Run relays events published by other instances. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return nil
	}

	sub := h.redis.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	h.logger.Info("realtime fan-out subscribed", "channel", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.handleRemote(msg.Payload)
		}
	}
}

func (h *Hub) handleRemote(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		h.logger.Warn("dropping malformed fan-out message", "error", err)
		return
	}
	if env.Origin == h.origin || env.UserID == "" {
		return
	}
	h.deliver(env.UserID, env.Event)
}

// deliver queues data on every local connection of userID.
// Slow clients drop events rather than block the publisher.
func (h *Hub) deliver(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping event", "user_id", userID)
		}
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	peers := h.clientsByUser[c.userID]
	if peers == nil {
		peers = make(map[*Client]struct{})
		h.clientsByUser[c.userID] = peers
	}
	peers[c] = struct{}{}
	h.connections++
	n := h.connections
	h.mu.Unlock()

	h.metrics.SetRealtimeConnections(n)
	h.markOnline(c.userID)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	peers, ok := h.clientsByUser[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := peers[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(peers, c)
	close(c.send)
	h.connections--
	last := len(peers) == 0
	if last {
		delete(h.clientsByUser, c.userID)
	}
	n := h.connections
	h.mu.Unlock()

	h.metrics.SetRealtimeConnections(n)
	if last && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()
		if err := h.presence.MarkOffline(ctx, c.userID); err != nil {
			h.logger.Warn("failed to clear presence", "user_id", c.userID, "error", err)
		}
	}
}

func (h *Hub) markOnline(userID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()
	if err := h.presence.MarkOnline(ctx, userID); err != nil {
		h.logger.Warn("failed to refresh presence", "user_id", userID, "error", err)
	}
}

// Connections returns the number of local connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connections
}

// Shutdown refuses new connections and closes the open ones.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	var clients []*Client
	for _, peers := range h.clientsByUser {
		for c := range peers {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	h.logger.Info("closing realtime connections", "count", len(clients))
	for _, c := range clients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.closeGoingAway()
	}
	return nil
}
