package testharness

import (
	"sync"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/transport"
)

// Bus is an in-memory multi-drop medium. Every frame sent by one endpoint is
// delivered to every other endpoint, mirroring what a bridge exposes of the
// physical bus. There is no arbitration and no loss unless an endpoint's
// inbox overflows, in which case the frame is dropped for that endpoint
// (shared-bus realism: a slow consumer misses traffic, the bus does not
// block).
type Bus struct {
	mu    sync.Mutex
	conns []*busConn
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Connect attaches a new endpoint to the bus.
func (b *Bus) Connect() transport.Conn {
	c := &busConn{
		bus:    b,
		inbox:  make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()
	return c
}

func (b *Bus) broadcast(from *busConn, data []byte) {
	b.mu.Lock()
	conns := make([]*busConn, len(b.conns))
	copy(conns, b.conns)
	b.mu.Unlock()

	for _, c := range conns {
		if c == from {
			continue
		}
		select {
		case <-c.closed:
		case c.inbox <- data:
		default:
			// Inbox full: drop for this endpoint.
		}
	}
}

func (b *Bus) remove(conn *busConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.conns {
		if c == conn {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			return
		}
	}
}

type busConn struct {
	bus    *Bus
	inbox  chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *busConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return transport.ErrConnClosed
	default:
	}
	// Copy: the sender may reuse its buffer.
	frame := make([]byte, len(data))
	copy(frame, data)
	c.bus.broadcast(c, frame)
	return nil
}

func (c *busConn) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, transport.ErrConnClosed
	case <-timer.C:
		return nil, transport.ErrReceiveTimeout
	}
}

func (c *busConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.bus.remove(c)
	})
	return nil
}

// Compile-time interface satisfaction check.
var _ transport.Conn = (*busConn)(nil)
