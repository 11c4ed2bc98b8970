package realtime

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"valikoo/pkg/errors"
	"valikoo/pkg/logger"
)

// Connection states. The channel cycles connecting -> open -> closed ->
// (backoff) -> connecting until its context is cancelled.
const (
	StatusConnecting = "connecting"
	StatusOpen       = "open"
	StatusClosed     = "closed"
)

// Channel owns the single realtime connection. Events and status changes are
// delivered on channels; Run drives the connect/read/backoff loop on the
// calling goroutine.
type Channel struct {
	url    string
	token  func() string
	dialer *websocket.Dialer

	// BaseDelay and MaxDelay bound the reconnect backoff. Consecutive
	// attempts are never closer than BaseDelay apart. Set before Run.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	events   chan Event
	statuses chan string

	mu     sync.Mutex
	conn   *websocket.Conn
	status string
}

// NewChannel builds a channel for url. token is consulted at every connect so
// a re-login is picked up on the next attempt.
func NewChannel(url string, token func() string) *Channel {
	return &Channel{
		url:       url,
		token:     token,
		dialer:    websocket.DefaultDialer,
		BaseDelay: 5 * time.Second,
		MaxDelay:  80 * time.Second,
		events:    make(chan Event, 64),
		statuses:  make(chan string, 8),
		status:    StatusClosed,
	}
}

func (c *Channel) Events() <-chan Event {
	return c.events
}

// Statuses emits every state transition. The buffer is small; stale statuses
// are dropped rather than blocking the read loop.
func (c *Channel) Statuses() <-chan string {
	return c.statuses
}

func (c *Channel) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run connects and keeps reconnecting with bounded backoff until ctx is
// cancelled. It always returns ctx.Err().
func (c *Channel) Run(ctx context.Context) error {
	delay := c.BaseDelay
	for {
		c.setStatus(StatusConnecting)
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			logger.Warn("realtime connect to %s failed: %v", c.url, err)
		} else {
			c.setConn(conn)
			c.setStatus(StatusOpen)
			delay = c.BaseDelay
			c.authenticate()
			c.readLoop(ctx, conn)
			c.setConn(nil)
		}
		c.setStatus(StatusClosed)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(c.jittered(delay)):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = nextDelay(delay, c.MaxDelay)
	}
}

// jittered adds up to delay/2 on top, so attempts spread out without ever
// shrinking below the base spacing.
func (c *Channel) jittered(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return delay + time.Duration(rand.Int63n(int64(delay/2)+1))
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

func (c *Channel) authenticate() {
	token := ""
	if c.token != nil {
		token = c.token()
	}
	if token == "" {
		return
	}
	if err := c.write(map[string]interface{}{"type": frameTypeAuth, "token": token}); err != nil {
		logger.Warn("realtime auth frame failed: %v", err)
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				logger.Warn("realtime read failed: %v", err)
			}
			return
		}

		event, err := decodeEvent(raw)
		if err != nil {
			logger.Warn("dropping realtime frame: %v", err)
			continue
		}
		if event == nil {
			logger.Debug("ignoring realtime frame: %s", string(raw))
			continue
		}
		select {
		case c.events <- event:
		default:
			logger.Warn("realtime event buffer full, dropping %s", event.eventType())
		}
	}
}

// SendReadReceipt tells the other participants the conversation (or one
// message of it) has been seen. A closed channel is an error the caller may
// ignore: receipts are best effort by design of the protocol.
func (c *Channel) SendReadReceipt(conversationID, messageID string, all bool) error {
	frame := map[string]interface{}{
		"type":           frameTypeReadReceipt,
		"conversationId": conversationID,
	}
	if all {
		frame["all"] = true
	} else {
		frame["messageId"] = messageID
	}
	return c.write(frame)
}

func (c *Channel) write(frame interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.status != StatusOpen {
		return errors.Network("realtime channel is not open", nil)
	}
	return c.conn.WriteJSON(frame)
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) setStatus(status string) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	select {
	case c.statuses <- status:
	default:
	}
}
