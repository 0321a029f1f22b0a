// Package transport is the websocket adapter between connected parties and
// the relay core. Inbound frames become core events; the Hub is the sender
// the core answers through.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var (
	// ErrNotConnected is returned by Send for a party without a connection
	ErrNotConnected = errors.New("party is not connected")
	// ErrSlowConsumer is returned by Send when the party's outbound buffer is full
	ErrSlowConsumer = errors.New("party outbound buffer is full")
)

// Dispatcher handles inbound events
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.Event) error
}

// Frame is the wire envelope in both directions. Parties send
// {"type":"event","event":{...}}; the hub sends {"type":"message","message":{...}}
// and {"type":"error","error":"..."} for frames it could not read.
type Frame struct {
	Type    string           `json:"type"`
	Event   *models.Event    `json:"event,omitempty"`
	Message *models.Outbound `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// connections are authenticated by the api middleware before upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub keeps one websocket connection per party
type Hub struct {
	dispatcher Dispatcher

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub returns a hub that hands inbound events to dispatcher
func NewHub(dispatcher Dispatcher) *Hub {
	return &Hub{dispatcher: dispatcher, clients: make(map[string]*client)}
}

// SetDispatcher replaces the dispatcher. The core needs the hub as its
// sender, so the two are wired after construction.
func (h *Hub) SetDispatcher(dispatcher Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher = dispatcher
}

// Send queues out for partyID. It fails when the party is not connected or
// not reading fast enough.
func (h *Hub) Send(_ context.Context, partyID string, out models.Outbound) error {
	h.mu.RLock()
	c, ok := h.clients[partyID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	b, err := json.Marshal(Frame{Type: "message", Message: &out})
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

// Connected reports whether partyID has a live connection
func (h *Hub) Connected(partyID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[partyID]
	return ok
}

// Count returns the number of connected parties
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades the request and serves partyID until the connection
// closes. A newer connection for the same party replaces the older one.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, partyID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.New().String(), partyID: partyID, hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	zap.S().Debugw("websocket connected", "connId", c.id)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	old := h.clients[c.partyID]
	h.clients[c.partyID] = c
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c.partyID] == c {
		delete(h.clients, c.partyID)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) dispatch(ctx context.Context, ev models.Event) error {
	h.mu.RLock()
	d := h.dispatcher
	h.mu.RUnlock()
	if d == nil {
		return errors.New("no dispatcher")
	}
	return d.Dispatch(ctx, ev)
}
