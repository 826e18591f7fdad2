// Package ws is the live transport: one websocket per connection,
// commands in, events out. The write pump is the only goroutine
// touching the socket for writes, which preserves per-connection
// delivery order.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 * 1024
)

// outboundFrame is the envelope of every server-to-client message.
type outboundFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is one live websocket session bound to a single identity.
type Client struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn
	send     chan []byte
	log      *slog.Logger

	mu     sync.Mutex
	joined map[uuid.UUID]struct{}
	closed bool
}

func newClient(identity domain.Identity, conn *websocket.Conn,
	bufferSize int, log *slog.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, bufferSize),
		log:      log,
		joined:   make(map[uuid.UUID]struct{}),
	}
}

func (c *Client) ID() string                { return c.id }
func (c *Client) Identity() domain.Identity { return c.identity }

// Deliver enqueues an event frame without ever blocking the caller.
// A full buffer means the client cannot keep up; the event is dropped
// for this connection and the dispatcher logs it.
func (c *Client) Deliver(_ context.Context, e event.DomainEvent) error {
	frame, err := json.Marshal(outboundFrame{Event: e.EventName(), Payload: e})
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// deliverError reports a failed command back on the same socket. Uses
// the same non-blocking discipline as Deliver.
func (c *Client) deliverError(command string, err error) {
	frame, marshalErr := json.Marshal(outboundFrame{
		Event: "error",
		Payload: errorPayload{
			Command: command,
			Code:    errors.Code(err),
			Message: err.Error(),
		},
	})
	if marshalErr != nil {
		return
	}
	_ = c.enqueue(frame)
}

// enqueue holds the mutex across the channel send so a delivery racing
// the disconnect cleanup can never hit a closed channel; it is reported
// as unavailable instead.
func (c *Client) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrTransportUnavailable
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.ErrTransportUnavailable
	}
}

func (c *Client) trackJoin(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[conversationID] = struct{}{}
}

func (c *Client) trackLeave(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, conversationID)
}

// joinedChannels snapshots the subscriptions for disconnect cleanup.
func (c *Client) joinedChannels() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uuid.UUID, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
