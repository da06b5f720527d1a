package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Frame types pushed to clients.
const (
	FrameNotification = "notification"
	FrameUnread       = "unread"
)

// SendBuffer is how many frames may queue for one connection before it
// is treated as a slow consumer and dropped.
const SendBuffer = 64

// Frame is the JSON envelope written to WebSocket clients.
type Frame struct {
	Type         string        `json:"type"`
	UserID       int64         `json:"userId,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Count        *int          `json:"count,omitempty"`
}

// NotificationFrame encodes n as a notification frame.
func NotificationFrame(n *Notification) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameNotification, UserID: n.UserID, Notification: n})
}

// UnreadFrame encodes an unread-count frame.
func UnreadFrame(count int) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameUnread, Count: &count})
}

// Publisher delivers a stored notification to its recipient's clients.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}

// client is one connected socket.
type client struct {
	id     string
	userID int64
	ch     chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.ch) })
}

// Hub fans frames out to each member's connected sockets.
type Hub struct {
	log *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[int64]map[*client]struct{}),
	}
}

// register adds a connection for userID. It returns nil after Shutdown.
func (h *Hub) register(userID int64) *client {
	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		ch:     make(chan []byte, SendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove drops c and closes its channel. Callers hold h.mu.
func (h *Hub) remove(c *client) {
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	c.close()
}

// Deliver queues frame on every socket userID has open. Sockets whose
// buffers are full are disconnected so the client reconnects and resyncs.
func (h *Hub) Deliver(userID int64, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.ch <- frame:
			delivered++
		default:
			h.log.Warnw("dropping slow websocket consumer", "user", userID, "conn", c.id)
			h.remove(c)
		}
	}
	return delivered
}

// send queues frame on c if it is still registered.
func (h *Hub) send(c *client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.ch <- frame:
	default:
	}
}

// Publish delivers n to its recipient's local sockets.
func (h *Hub) Publish(_ context.Context, n *Notification) error {
	frame, err := NotificationFrame(n)
	if err != nil {
		return fmt.Errorf("notify: encode frame: %w", err)
	}
	h.Deliver(n.UserID, frame)
	return nil
}

// Connections returns how many sockets userID has open.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
	h.clients = make(map[int64]map[*client]struct{})
}
