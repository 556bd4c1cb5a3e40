package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 32
)

// ErrSlowConsumer is returned when a subscriber's queue is full.
var ErrSlowConsumer = errors.New("websocket subscriber queue full")

// Client is one subscribed websocket connection. Outbound events are queued
// and written by a single pump goroutine that also keeps the connection alive
// with pings.
type Client struct {
	conn   *websocket.Conn
	log    *slog.Logger
	queue  chan []byte
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn and starts its write pump.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	c := &Client{
		conn:  conn,
		log:   logger,
		queue: make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send queues payload for delivery without blocking the hub.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	select {
	case c.queue <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// ReadLoop discards inbound frames until the peer goes away, extending the
// read deadline on every pong.
func (c *Client) ReadLoop() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

// Close stops the write pump and terminates the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("websocket send failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
