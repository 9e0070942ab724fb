// Package wsconn provides a WebSocket client with reconnection and
// keep-alive handling.
package wsconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ErrClosed is returned after Close has been called.
var ErrClosed = errors.New("wsconn: client is closed")

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // label for diagnostics
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int           // 0 = infinite
	PingInterval   time.Duration // 0 disables pings
	BufferSize     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		BufferSize:     100,
	}
}

// Client is a reconnecting WebSocket client delivering raw messages on a
// channel.
type Client struct {
	config Config

	connMu sync.Mutex
	conn   *websocket.Conn

	state   State
	stateMu sync.RWMutex

	messages chan []byte
	done     chan struct{}
	closed   atomic.Bool

	reconnects int
}

// New creates a new WebSocket client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("wsconn: url is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}

	return &Client{
		config:   cfg,
		state:    StateDisconnected,
		messages: make(chan []byte, cfg.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Connect dials the endpoint and starts the read and keep-alive loops.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.setState(StateConnecting)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}
	conn.SetReadLimit(1 << 20)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)

	go c.readLoop()
	if c.config.PingInterval > 0 {
		go c.pingLoop()
	}

	return nil
}

// Send writes a text message through the connection.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return errors.New("wsconn: not connected")
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

// Messages returns the channel delivering received messages.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close tears the connection down. The messages channel is closed once the
// read loop exits.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	c.setState(StateDisconnected)
	return nil
}

func (c *Client) readLoop() {
	defer close(c.messages)

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		_, data, err := conn.Read(context.Background())
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		select {
		case c.messages <- data:
		case <-c.done:
			return
		default:
			// Buffer full: drop the oldest to keep the stream current.
			select {
			case <-c.messages:
			default:
			}
			c.messages <- data
		}
	}
}

// reconnect re-dials with exponential backoff. Returns false when the
// client is closed or the reconnect budget is spent.
func (c *Client) reconnect() bool {
	c.setState(StateReconnecting)

	backoff := c.config.InitialBackoff
	for {
		if c.config.MaxReconnects > 0 && c.reconnects >= c.config.MaxReconnects {
			c.setState(StateDisconnected)
			return false
		}

		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}

		c.reconnects++

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
		cancel()

		if err == nil {
			conn.SetReadLimit(1 << 20)
			c.connMu.Lock()
			c.conn = conn
			c.connMu.Unlock()
			c.setState(StateConnected)
			return true
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()

			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = conn.Ping(ctx)
			cancel()
		}
	}
}

func (c *Client) setState(state State) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}
