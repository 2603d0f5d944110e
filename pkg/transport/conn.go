package transport

import (
	"sync"

	"github.com/gorilla/websocket"

	"chathub/pkg/errors"
)

// Conn is one live websocket connection with its outbound queue. Writes to
// the socket happen only on the connection's write pump, so the websocket
// write path is never shared between goroutines.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// ID returns the transport-assigned connection id.
func (c *Conn) ID() string {
	return c.id
}

// Socket returns the underlying websocket connection for the read loop.
func (c *Conn) Socket() *websocket.Conn {
	return c.ws
}

// enqueue hands a frame to the write pump without blocking.
func (c *Conn) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// close shuts the outbound queue; the write pump drains what is left and
// closes the socket. Safe to call more than once.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
