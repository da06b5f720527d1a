package notify

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// ErrHubClosed is returned by Serve after Shutdown.
var ErrHubClosed = errors.New("notify: hub is shut down")

// Upgrader returns a WebSocket upgrader that accepts same-origin
// requests and browser origins listed in allowed ("*" accepts any).
// Requests without an Origin header (non-browser clients) are accepted.
func Upgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// Serve upgrades the request and streams userID's frames until the
// client disconnects or the hub shuts down. The first frame carries the
// current unread count. Inbound messages are read and discarded; they
// only keep the read deadline alive.
func (h *Hub) Serve(up *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID int64, unread int) error {
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := h.register(userID)
	if c == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return ErrHubClosed
	}
	h.log.Debugw("websocket connected", "user", userID, "conn", c.id)

	if frame, err := UnreadFrame(unread); err == nil {
		h.send(c, frame)
	}

	done := make(chan struct{})
	go h.writePump(conn, c, done)
	h.readPump(conn)

	h.unregister(c)
	<-done
	h.log.Debugw("websocket disconnected", "user", userID, "conn", c.id)
	return nil
}

// writePump owns all writes to conn.
func (h *Hub) writePump(conn *websocket.Conn, c *client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-c.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
