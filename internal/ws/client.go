package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Client is one live socket connection bound to an authenticated identity.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

func newClient(id, userID string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// trySend queues b for delivery without blocking. Reports false when the
// buffer is full.
func (c *Client) trySend(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// sendEvent marshals and queues an envelope for this connection.
func (c *Client) sendEvent(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.trySend(b)
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It owns all writes to the socket.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
