// Package peerclient is the player side of the session protocol. Client
// owns the socket and delivers decoded messages in order; Remote binds a
// local controller to those messages so a player on this machine can sit
// at a table hosted by a relay.
package peerclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/galaxy-relay/mux"
	"github.com/cyberinferno/galaxy-relay/protocol"
)

// ErrNotConnected is returned by Send when there is no live connection.
var ErrNotConnected = errors.New("not connected")

// ConnectionState represents the current state of the connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Dial in progress
	Connected                           // Socket open
	Closed                              // Closed for good
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState // The new connection state
	Address   string          // The remote address
	Timestamp time.Time       // When the change happened
	Error     error           // Non-nil if the change was caused by an error
}

// ConnectionStateHandler is called on state changes from the read
// goroutine or the caller of Connect/Close.
type ConnectionStateHandler func(event ConnectionStateEvent)

// MessageHandler is called once per decoded message, in arrival order, on
// the read goroutine. It must not block for long.
type MessageHandler func(msg protocol.Message)

// Config holds client settings.
type Config struct {
	// Address is the relay's "host:port".
	Address string
	// ReadBufferSize is the largest single socket read.
	ReadBufferSize int
	// WriteTimeout bounds one write; 0 means no timeout.
	WriteTimeout time.Duration
	// ConnectionTimeout bounds the dial.
	ConnectionTimeout time.Duration
	// MaxPayload is the largest inbound payload accepted.
	MaxPayload uint32
}

// DefaultConfig returns a Config for address with protocol defaults.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with ReadBufferSize 1024, WriteTimeout 10s, ConnectionTimeout
//     10s and the default payload limit
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReadBufferSize:    protocol.ChunkSize,
		WriteTimeout:      10 * time.Second,
		ConnectionTimeout: 10 * time.Second,
		MaxPayload:        protocol.DefaultMaxPayload,
	}
}

// Client is a protocol connection to a relay. Register handlers, then call
// Connect. It is safe for concurrent use.
type Client struct {
	config Config
	conn   net.Conn
	state  ConnectionState

	onConnectionState ConnectionStateHandler
	onMessage         MessageHandler

	mu      sync.RWMutex
	writeMu sync.Mutex
	wg      sync.WaitGroup
	closed  bool
}

// NewClient creates a disconnected client.
func NewClient(config Config) *Client {
	return &Client{config: config, state: Disconnected}
}

// OnConnectionState registers the handler for state changes, replacing any
// previous one.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// OnMessage registers the handler for decoded messages, replacing any
// previous one.
func (c *Client) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

// Connect dials the relay and starts the read goroutine.
//
// Parameters:
//   - ctx: Bounds the dial together with ConnectionTimeout
//
// Returns:
//   - An error if the client is closed, already connected, or the dial fails
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Send encodes p and writes it.
//
// Returns:
//   - ErrNotConnected, or the write error
func (c *Client) Send(p protocol.Payload) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	_, err := conn.Write(protocol.Marshal(p))
	return err
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close closes the socket and waits for the read goroutine. It is
// idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.setState(Closed, nil)
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	demux := mux.NewDemuxer(c.config.MaxPayload)
	buf := make([]byte, c.config.ReadBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, derr := demux.Feed(buf[:n], c.dispatch); derr != nil {
				_ = conn.Close()
				c.disconnected(derr)
				return
			}
		}

		if err != nil {
			c.disconnected(err)
			return
		}
	}
}

func (c *Client) dispatch(msg protocol.Message) bool {
	c.mu.RLock()
	handler := c.onMessage
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}

	return true
}

func (c *Client) disconnected(err error) {
	c.mu.Lock()
	c.conn = nil
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		c.setState(Disconnected, err)
	}
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onConnectionState
	c.mu.Unlock()

	if handler != nil {
		handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}
