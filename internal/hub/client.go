package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/tesloshop/relay/internal/directory"
)

// Options tunes per-client behavior. Zero values fall back to defaults.
type Options struct {
	SendBuffer   int           // outbound frames buffered before drops
	WriteTimeout time.Duration // per-frame write deadline
	PingInterval time.Duration
	MessageRate  float64 // inbound chat messages per second
	MessageBurst int
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MessageRate <= 0 {
		o.MessageRate = 10
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 20
	}
	return o
}

// Client is one admitted connection: an opaque connection id, the identity
// snapshot captured at admission, and the write-capable transport. A Client
// never outlives its transport and is never reused across reconnects.
type Client struct {
	hub      *Hub
	id       string
	identity directory.Identity
	conn     *websocket.Conn

	// send is drained by WritePump only. It is never closed; stopping a
	// client goes through cancel so the dispatcher can keep enqueueing
	// without racing a close.
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	limiter      *rate.Limiter
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewClient builds a client around an open transport. The connection id is
// generated here, once, and the identity snapshot is immutable thereafter.
func NewClient(h *Hub, conn *websocket.Conn, identity directory.Identity, parent context.Context, opts Options) *Client {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		hub:          h,
		id:           NewConnectionID(),
		identity:     identity,
		conn:         conn,
		send:         make(chan []byte, opts.SendBuffer),
		ctx:          ctx,
		cancel:       cancel,
		limiter:      rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
	}
}

// ID returns the opaque connection id.
func (c *Client) ID() string { return c.id }

// Identity returns the identity snapshot captured at admission.
func (c *Client) Identity() directory.Identity { return c.identity }

// ReadPump consumes inbound frames until the transport dies or the client is
// stopped, then removes the client from the hub. Removal is idempotent, so
// racing a concurrent eviction is safe.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.conn.Close(websocket.StatusNormalClosure, "")
		c.hub.Remove(c.id)
	}()

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("dropping malformed frame", "connection", c.id, "error", err)
			continue
		}

		switch env.Event {
		case EventChatMessage:
			if !c.limiter.Allow() {
				slog.Warn("chat message rate exceeded", "connection", c.id)
				continue
			}
			var msg ChatMessage
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &msg); err != nil {
					slog.Debug("dropping malformed chat payload", "connection", c.id, "error", err)
					continue
				}
			}
			c.hub.Relay(c.id, msg.Message)
		default:
			slog.Debug("dropping unknown event", "connection", c.id, "event", env.Event)
		}
	}
}

// WritePump drains the send queue onto the transport. A failed write stops
// the client; delivery is fire-and-forget.
func (c *Client) WritePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.cancel()
				c.hub.Remove(c.id)
				return
			}
		}
	}
}

// PingLoop probes the transport so half-open connections are noticed even
// when no events flow.
func (c *Client) PingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.cancel()
				c.hub.Remove(c.id)
				return
			}
		}
	}
}

// enqueue hands a pre-marshaled frame to the client without blocking the
// dispatcher. Reports false when the send buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// evict force-closes the transport of a superseded session. The read pump
// observes the closure and performs the (idempotent) registry removal.
func (c *Client) evict() {
	c.cancel()
	c.conn.Close(websocket.StatusPolicyViolation, "session superseded")
}

// shutdown closes the transport as part of hub teardown.
func (c *Client) shutdown() {
	c.cancel()
	c.conn.Close(websocket.StatusGoingAway, "relay shutting down")
}
