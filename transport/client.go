package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client is one websocket connection of a party
type client struct {
	id      string
	partyID string
	hub     *Hub
	conn    *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (c *client) enqueue(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump turns inbound frames into events for the dispatcher. The party id
// always comes from the authenticated connection, never from the frame.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Warnw("websocket read failed", "connId", c.id, "error", err)
			}
			return
		}
		if frame.Type != "event" || frame.Event == nil {
			c.reject("expected an event frame")
			continue
		}

		ev := *frame.Event
		ev.PartyID = c.partyID
		if err := c.hub.dispatch(context.Background(), ev); err != nil {
			zap.S().Debugw("event not handled", "connId", c.id, "kind", ev.Kind, "error", err)
		}
	}
}

func (c *client) reject(reason string) {
	b, err := json.Marshal(Frame{Type: "error", Error: reason})
	if err == nil {
		_ = c.enqueue(b)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.S().Warnw("websocket write failed", "connId", c.id, "error", err)
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
