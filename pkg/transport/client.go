package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/log"
)

// ErrConnClosed indicates the connection has been closed.
var ErrConnClosed = errors.New("connection is closed")

// ErrReceiveTimeout indicates no frame arrived within the receive timeout.
var ErrReceiveTimeout = errors.New("receive timed out")

// Conn is a frame-oriented connection to a bus bridge.
// Implemented by ClientConn and by the in-memory test harness.
type Conn interface {
	// Send sends one frame to the bridge.
	Send(data []byte) error

	// Receive receives one frame, waiting at most timeout.
	// Returns ErrReceiveTimeout if no frame arrived in time.
	Receive(timeout time.Duration) ([]byte, error)

	// Close closes the connection.
	Close() error
}

// ClientConfig configures a bridge client.
type ClientConfig struct {
	// ConnectTimeout is the dial timeout (default: 10s).
	ConnectTimeout time.Duration

	// Logger receives transport-layer frame events.
	Logger log.Logger

	// SessionID tags log events emitted by this connection.
	SessionID string
}

// Client dials TORQBUS bridges.
type Client struct {
	config ClientConfig
}

// NewClient creates a new bridge client.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	return &Client{config: config}
}

// Connect establishes a TCP connection to the bridge at address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	cc := &ClientConn{
		conn:   conn,
		reader: NewFrameReader(conn),
		writer: NewFrameWriter(conn),
	}
	if c.config.Logger != nil {
		cc.reader.SetLogger(c.config.Logger, c.config.SessionID)
		cc.writer.SetLogger(c.config.Logger, c.config.SessionID)
	}
	return cc, nil
}

// ClientConn is a TCP connection to a bus bridge.
type ClientConn struct {
	conn   net.Conn
	reader *FrameReader
	writer *FrameWriter

	closeOnce sync.Once
	readMu    sync.Mutex
}

// RemoteAddr returns the bridge's network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends one frame to the bridge.
func (c *ClientConn) Send(data []byte) error {
	return c.writer.WriteFrame(data)
}

// Receive receives one frame, waiting at most timeout. A timeout that
// strikes mid-frame is recoverable: the reader keeps the partial frame and
// the next call resumes it.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	data, err := c.reader.ReadFrame()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrReceiveTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrReceiveTimeout
		}
		return nil, err
	}
	return data, nil
}

// Close closes the connection. Safe to call multiple times.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// Compile-time interface satisfaction check.
var _ Conn = (*ClientConn)(nil)
