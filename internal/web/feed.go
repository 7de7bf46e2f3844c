package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/store"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
)

// feedEvent is one message on the /ws/feed stream. Clients treat the stream
// as a change signal and re-fetch through the REST API when they need the
// full list; a missed event costs freshness, never correctness.
type feedEvent struct {
	Type         string              `json:"type"` // notification, toast, mute, refresh
	Notification *store.Notification `json:"notification,omitempty"`
	Mute         *store.MuteState    `json:"mute,omitempty"`
	Unread       int                 `json:"unread"`
	Time         time.Time           `json:"time"`
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

// feedHub fans feed events out to connected WebSocket clients. A client
// whose send buffer is full misses events until it drains.
type feedHub struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newFeedHub() *feedHub {
	return &feedHub{clients: make(map[*feedClient]struct{})}
}

func (h *feedHub) add(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *feedHub) remove(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.once.Do(func() { close(c.send) })
}

func (h *feedHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *feedHub) broadcast(evt feedEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logging.ForComponent(logging.CompWeb).Error("feed_marshal_failed",
			slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, 16)}
	s.feed.add(client)

	// Greet with the current state so a client renders without waiting for
	// the first mutation.
	greeting := s.feedEventFor("refresh", nil)
	if payload, err := json.Marshal(greeting); err == nil {
		select {
		case client.send <- payload:
		default:
		}
	}

	go client.writeLoop()
	client.readLoop()
	s.feed.remove(client)
}

// writeLoop drains the send channel onto the socket and keeps the
// connection alive with pings. It exits when the channel closes or a write
// fails.
func (c *feedClient) writeLoop() {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(feedWriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages; the feed is one-way. It returns when
// the client disconnects.
func (c *feedClient) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logging.ForComponent(logging.CompWeb).Debug("feed_client_closed",
					slog.String("error", err.Error()))
			}
			return
		}
	}
}
