package hub

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
)

const (
	// Time allowed to write a payload or ping to the peer
	writeWait = 10 * time.Second

	// Ping the peer with this period to detect dead connections
	pingPeriod = 54 * time.Second

	// Clients never send application data; anything larger is abuse
	maxMessageSize = 4 * 1024

	// Outbound buffer per connection. A recipient whose buffer fills up
	// is treated as stuck and dropped rather than stalling dispatch.
	sendBufferSize = 64
)

// Client is one live push connection bound to a user.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	// UserID is the identity the connection was registered under
	UserID string

	// Buffered channel of outbound payloads, drained by WritePump.
	// Closed exactly once by the hub on deregistration.
	send chan []byte

	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an accepted WebSocket connection for the given user.
func NewClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:        conn,
		hub:         h,
		UserID:      userID,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now().UTC(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ReadPump blocks until the peer closes or errors. The connection is
// push-only: inbound frames are read to service the protocol and discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.Read(c.ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Log.Info("client disconnected", logger.WithUserID(c.UserID))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("client read error", logger.WithUserID(c.UserID), zap.Error(err))
			}
			return
		}
	}
}

// WritePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case payload, ok := <-c.send:
			if !ok {
				// Hub deregistered this client
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, payload)
			cancel()

			if err != nil {
				logger.Log.Warn("client write error", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.Unregister(c)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Info("client ping failed", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// Close tears down the connection. Safe to call from multiple paths;
// only the first call has any effect.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Info returns connection metadata for the stats endpoint.
func (c *Client) Info() ClientInfo {
	return ClientInfo{
		UserID:      c.UserID,
		ConnectedAt: c.ConnectedAt,
		RemoteAddr:  c.RemoteAddr,
		UserAgent:   c.UserAgent,
	}
}

// ClientInfo is the public view of a connection.
type ClientInfo struct {
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	RemoteAddr  string    `json:"remote_addr"`
	UserAgent   string    `json:"user_agent"`
}
