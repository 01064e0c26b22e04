package nats

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when publishing without a connection.
var ErrNotConnected = errors.New("nats: not connected")

// Client publishes bridge activity and receives control commands.
// It degrades to a no-op when the server is unreachable.
type Client struct {
	url      string
	subjects Subjects
	logger   *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	sub       *nats.Subscription
	onControl func(ControlMessage)
	connected bool
}

// NewClient creates a client for url publishing under prefix.
func NewClient(url, prefix string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      url,
		subjects: NewSubjects(prefix),
		logger:   logger.With("component", "nats-client"),
	}
}

// Subjects returns the subject names the client uses.
func (c *Client) Subjects() Subjects { return c.subjects }

// Connect establishes the connection. On failure the client stays usable
// and every publish is dropped.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("capturebridge"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)
	c.subscribeControlLocked()
	return nil
}

// subscribeControlLocked subscribes to control commands (must hold lock).
// Subscriptions survive reconnects inside nats.go.
func (c *Client) subscribeControlLocked() {
	if c.conn == nil || c.onControl == nil || c.sub != nil {
		return
	}

	handler := c.onControl
	sub, err := c.conn.Subscribe(c.subjects.Control(), func(msg *nats.Msg) {
		ctrl, err := UnmarshalControl(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal control message", "error", err)
			return
		}
		c.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)
		handler(ctrl)
	})
	if err != nil {
		c.logger.Warn("Failed to subscribe to control commands", "error", err)
		return
	}
	c.sub = sub
}

// OnControl sets the handler for control commands. It replaces any
// previous handler.
func (c *Client) OnControl(fn func(ControlMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = fn
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	c.subscribeControlLocked()
}

// Publish serializes v as JSON onto subject.
func (c *Client) Publish(subject string, v any) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// SendControl publishes a control command, for the CLI and tests.
func (c *Client) SendControl(action, reason string) error {
	return c.Publish(c.subjects.Control(), ControlMessage{
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
	})
}

// Flush waits until the server has processed everything published.
func (c *Client) Flush() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Flush()
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.logger.Debug("NATS client closed")
}
