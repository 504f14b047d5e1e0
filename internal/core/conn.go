package core

import (
	"errors"
	"sync"
)

// ErrConnClosed is returned by send when the connection has been closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBufferFull is returned by send when the recipient's outbound buffer
// is saturated (slow consumer).
var ErrSendBufferFull = errors.New("send buffer full")

// sendBuffer is the outbound event buffer per connection. A connection that
// falls this many events behind is treated as a failed recipient.
const sendBuffer = 32

// Conn is one live real-time session as seen by the core. The transport owns
// the socket; the core owns delivery ordering through the events channel.
//
// userID and roomID are guarded by the Registry's mutex: zero means
// unauthenticated / not in any room.
type Conn struct {
	ID string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	userID int64
	roomID int64
}

// NewConn constructs a connection with an initialized outbound buffer.
func NewConn(id string) *Conn {
	return &Conn{
		ID:     id,
		events: make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Events is drained by the transport's write loop.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection closed. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// send enqueues an event without blocking. Delivery failures are isolated per
// recipient: the caller decides what a full buffer or closed connection means.
func (c *Conn) send(ev Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}
