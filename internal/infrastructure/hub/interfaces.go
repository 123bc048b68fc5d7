package hub

import (
	"context"
	"errors"
)

var (
	// ErrConnectionClosed is returned by Send once a connection has been
	// closed; the caller is expected to tear the connection down.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrSendBufferFull is returned when a slow consumer's bounded send
	// queue overflows. The connection closes itself rather than stall
	// delivery to other subscribers.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Connection is one live transport session (SSE stream or WebSocket).
// Exactly one bus subscription exists per open connection; Attach and
// Detach on the Hub keep the two in lockstep.
type Connection interface {
	ID() string

	// Transport names the wire transport, "sse" or "websocket".
	Transport() string

	// Identity returns the authenticated username attached at connect time.
	Identity() string

	// Send enqueues an event on the connection's bounded FIFO queue. It
	// never blocks: a closed connection or a full queue returns an error,
	// and a full queue additionally closes the connection.
	Send(event *Event) error

	// Close is idempotent and cancels Context.
	Close() error
	IsClosed() bool

	// Context is done once the connection is closing, whichever side
	// initiated it.
	Context() context.Context
}
