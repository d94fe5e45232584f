// Package hub maintains the in-memory registry of live push connections and
// fans notification payloads out to a recipient's open connections. The
// registry is this service's only shared mutable state; it is rebuilt from
// zero on restart because the connections themselves are gone anyway — the
// persisted notification record in the web app's database stays the source
// of truth.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
	"github.com/divyanshmehta355/aurahub-notify/internal/metrics"
)

// Drop reasons reported on the notifications_dropped_total metric.
const (
	dropReasonOffline    = "offline"
	dropReasonBufferFull = "buffer_full"
)

// Hub maps user IDs to their currently open connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool

	metrics *metrics.Metrics
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		metrics: metrics.Get(),
	}
}

// Register adds a connection to its user's set. Registering the same client
// twice is a no-op. A hub that has been shut down closes the client instead.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.Close()
		return
	}

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	if _, dup := set[c]; dup {
		h.mu.Unlock()
		return
	}
	set[c] = struct{}{}
	active := h.connectionCountLocked()
	h.mu.Unlock()

	h.metrics.WSConnectionsTotal.Inc()
	h.metrics.WSConnectionsActive.Set(float64(active))

	logger.Log.Info("connection registered",
		logger.WithUserID(c.UserID),
		zap.Int("active", active),
	)
}

// Unregister removes a connection and closes its send channel. Calling it for
// a client that was never registered, or a second time from a concurrent close
// path, is a no-op — the send channel is closed exactly once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
	active := h.connectionCountLocked()
	h.mu.Unlock()

	h.metrics.WSConnectionsActive.Set(float64(active))

	logger.Log.Info("connection deregistered",
		logger.WithUserID(c.UserID),
		zap.Int("active", active),
	)
}

// Connections returns a snapshot of the user's open connections. The snapshot
// may be stale the moment it is returned; delivery is best effort.
func (h *Hub) Connections(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.clients[userID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Dispatch hands the payload to every open connection of the recipient.
// Exactly one non-blocking attempt is made per connection: a full send buffer
// means the peer is stuck or gone, so that connection is dropped and the
// remaining siblings still get the payload. Returns the number of connections
// the payload was handed to; zero with no error when the recipient is offline.
func (h *Hub) Dispatch(recipientID string, payload []byte) int {
	// Send attempts happen under the read lock so a concurrent Unregister
	// cannot close a send channel mid-attempt. The sends are non-blocking,
	// so holding the lock here never stalls on a slow peer.
	h.mu.RLock()
	set := h.clients[recipientID]
	if len(set) == 0 {
		h.mu.RUnlock()
		h.metrics.NotificationsDroppedTotal.WithLabelValues(dropReasonOffline).Inc()
		logger.Log.Debug("no open connections for recipient",
			logger.WithRecipient(recipientID),
		)
		return 0
	}

	delivered := 0
	var failed []*Client
	for c := range set {
		select {
		case c.send <- payload:
			delivered++
			h.metrics.NotificationsDeliveredTotal.Inc()
		default:
			failed = append(failed, c)
			h.metrics.NotificationsDroppedTotal.WithLabelValues(dropReasonBufferFull).Inc()
		}
	}
	h.mu.RUnlock()

	// Self-healing: a connection that could not take the payload is removed
	// so it cannot hold up future dispatches.
	for _, c := range failed {
		h.Unregister(c)
		c.Close()
		logger.Log.Warn("dropped stuck connection during dispatch",
			logger.WithRecipient(recipientID),
		)
	}

	logger.Log.Debug("dispatch complete",
		logger.WithRecipient(recipientID),
		zap.Int("delivered", delivered),
		zap.Int("dropped", len(failed)),
	)
	return delivered
}

// Push implements the dispatcher contract used by the ingest endpoint.
func (h *Hub) Push(_ context.Context, recipientID string, payload []byte) (int, error) {
	return h.Dispatch(recipientID, payload), nil
}

// IsUserOnline reports whether the user has at least one open connection.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// UserConnectionCount returns the number of open connections for a user.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// OnlineUsers returns the IDs of all users with at least one connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// ConnectionCount returns the total number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectionCountLocked()
}

func (h *Hub) connectionCountLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Shutdown closes every connection and clears the registry. Undelivered
// payloads are not flushed; the persisted records cover them.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
			close(c.send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, c := range all {
			c.Close()
		}
		close(done)
	}()

	h.metrics.WSConnectionsActive.Set(0)

	select {
	case <-done:
		logger.Log.Info("hub shut down", zap.Int("connections_closed", len(all)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub shutdown timeout: %w", ctx.Err())
	}
}

// Stats is a point-in-time view of the registry for the stats endpoint.
type Stats struct {
	ActiveConnections int          `json:"active_connections"`
	OnlineUsers       []string     `json:"online_users"`
	Connections       []ClientInfo `json:"connections"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Snapshot returns current registry stats, including per-connection metadata.
func (h *Hub) Snapshot() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	infos := make([]ClientInfo, 0, len(h.clients))
	for userID, set := range h.clients {
		users = append(users, userID)
		for c := range set {
			infos = append(infos, c.Info())
		}
	}
	return Stats{
		ActiveConnections: h.connectionCountLocked(),
		OnlineUsers:       users,
		Connections:       infos,
		Timestamp:         time.Now().UTC(),
	}
}
