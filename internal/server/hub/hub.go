// Package hub implements the server side of the channel protocol: one named
// channel per principal, carried over websockets.
//
// Row-watch events for a principal are pushed to connections that both joined
// the principal's channel and authenticated as that principal. Broadcast
// frames received from a subscriber are relayed to every other subscriber of
// the same channel, whoever they authenticated as.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Authenticator resolves an access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type conn struct {
	ws      *websocket.Conn
	send    chan event.Frame
	channel string // channel (principal) this connection joined
	userID  string // principal this connection authenticated as
	closed  sync.Once
}

func (c *conn) close() {
	c.closed.Do(func() { close(c.send) })
}

// Hub tracks channel subscriptions and fans events out to them.
type Hub struct {
	auth     Authenticator
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels map[string]map[*conn]struct{}
}

func New(auth Authenticator, logger logging.Logger) *Hub {
	return &Hub{
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		channels: map[string]map[*conn]struct{}{},
	}
}

// Handler upgrades GET /channels/{principal} requests. The access token comes
// from the query string because browser websocket clients cannot set headers.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := mux.Vars(r)["principal"]
		token := r.URL.Query().Get(common.AccessTokenHeaderName)

		user, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
			return
		}

		c := &conn{
			ws:      ws,
			send:    make(chan event.Frame, sendBufferSize),
			channel: channel,
			userID:  user.ID,
		}
		h.register(c)

		go c.writePump()

		// Readiness ack: the subscriber must not miss events sent after
		// this point.
		c.send <- event.Frame{Type: event.FrameSubscribed}

		h.readLoop(c)
	}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[c.channel]
	if !ok {
		subs = map[*conn]struct{}{}
		h.channels[c.channel] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if subs, ok := h.channels[c.channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, c.channel)
		}
	}
	h.mu.Unlock()
	c.close()
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for frame := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(frame); err != nil {
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *conn) {
	defer h.unregister(c)
	for {
		var frame event.Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug(context.Background(), "channel read error", "channel", c.channel, "error", err)
			}
			return
		}
		if frame.Type != event.FrameBroadcast || frame.Event == nil {
			continue
		}
		h.relay(c, *frame.Event)
	}
}

// relay delivers a broadcast event to every other subscriber of the sender's
// channel.
func (h *Hub) relay(sender *conn, ev event.Event) {
	ev.Source = event.SourceBroadcast
	frame := event.Frame{Type: event.FrameEvent, Event: &ev}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[sender.channel] {
		if c == sender {
			continue
		}
		h.deliver(c, frame)
	}
}

// RowChanged pushes a row-watch event to every listed principal. Only
// connections authenticated as the principal receive it, so a transient
// broadcast dial into someone else's channel never sees their row events.
func (h *Hub) RowChanged(table string, op event.Op, userIDs []string) {
	ev := event.RowWatch(table, op)
	frame := event.Frame{Type: event.FrameEvent, Event: &ev}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range userIDs {
		for c := range h.channels[userID] {
			if c.userID != userID {
				continue
			}
			h.deliver(c, frame)
		}
	}
}

func (h *Hub) deliver(c *conn, frame event.Frame) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn(context.Background(), "dropping event for slow subscriber", "channel", c.channel)
	}
}

// Close tears down every connection. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.channels {
		for c := range subs {
			c.close()
		}
	}
	h.channels = map[string]map[*conn]struct{}{}
}
