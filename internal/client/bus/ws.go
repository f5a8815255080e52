package bus

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/logging"
	"github.com/mkuzmins/homeboard/internal/sync/event"
)

// WSTransport opens channel connections against the server hub over
// websockets. The hub acknowledges a join with a "subscribed" frame before
// any events flow; Open does not return until that ack arrives.
type WSTransport struct {
	baseURL          string // e.g. ws://127.0.0.1:8080
	token            string
	handshakeTimeout time.Duration
	logger           logging.Logger
}

// NewWSTransport constructs a transport for the given hub base URL.
func NewWSTransport(baseURL, token string, logger logging.Logger) *WSTransport {
	return &WSTransport{
		baseURL:          baseURL,
		token:            token,
		handshakeTimeout: DefaultConnectTimeout,
		logger:           logger.With("module", "ws_transport"),
	}
}

// Open dials the named channel and starts the read loop. The returned Conn
// reconnects with backoff after transport drops and invokes OnReconnect
// after each re-establishment.
func (t *WSTransport) Open(ctx context.Context, channel string, opts OpenOptions) (Conn, error) {
	ws, err := t.dial(ctx, channel)
	if err != nil {
		return nil, err
	}

	c := &wsConn{t: t, channel: channel, opts: opts, ws: ws}
	go c.readLoop()
	return c, nil
}

// dial connects, then waits for the subscription ack.
func (t *WSTransport) dial(ctx context.Context, channel string) (*websocket.Conn, error) {
	u := fmt.Sprintf("%s/channels/%s?%s=%s",
		t.baseURL, url.PathEscape(channel), common.AccessTokenHeaderName, url.QueryEscape(t.token))

	dialer := &websocket.Dialer{HandshakeTimeout: t.handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("channel dial error: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	} else {
		_ = ws.SetReadDeadline(time.Now().Add(t.handshakeTimeout))
	}

	var frame event.Frame
	if err := ws.ReadJSON(&frame); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("channel ack error: %w", err)
	}
	if frame.Type != event.FrameSubscribed {
		_ = ws.Close()
		return nil, fmt.Errorf("unexpected frame %q before subscription ack", frame.Type)
	}

	_ = ws.SetReadDeadline(time.Time{})
	return ws, nil
}

type wsConn struct {
	t       *WSTransport
	channel string
	opts    OpenOptions

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func (c *wsConn) Send(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("channel %s is closed", c.channel)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	}
	return c.ws.WriteJSON(event.Frame{Type: event.FrameBroadcast, Event: &ev})
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

func (c *wsConn) readLoop() {
	for {
		c.mu.Lock()
		ws, closed := c.ws, c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		var frame event.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		if frame.Type == event.FrameEvent && frame.Event != nil && c.opts.OnEvent != nil {
			c.opts.OnEvent(*frame.Event)
		}
	}
}

// reconnect redials with fibonacci backoff until it succeeds or the conn is
// closed. Reports whether the read loop should continue.
func (c *wsConn) reconnect() bool {
	backoff := retry.NewFibonacci(500 * time.Millisecond)
	backoff = retry.WithCappedDuration(30*time.Second, backoff)

	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(ctx, c.t.handshakeTimeout)
		defer cancel()

		ws, err := c.t.dial(dialCtx, c.channel)
		if err != nil {
			return retry.RetryableError(err)
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = ws.Close()
			return nil
		}
		c.ws = ws
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.t.logger.Error(context.Background(), "channel reconnect failed", "channel", c.channel, "error", err)
		return false
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}

	c.t.logger.Info(context.Background(), "channel reconnected", "channel", c.channel)
	if c.opts.OnReconnect != nil {
		c.opts.OnReconnect()
	}
	return true
}
