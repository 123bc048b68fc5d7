package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"

	"go-chat-stream/internal/infrastructure/logger"
)

// sendQueueSize bounds the per-connection event queue. A consumer that
// falls this far behind is disconnected instead of stalling the publisher.
const sendQueueSize = 256

// streamWriter is what an SSE connection needs from the HTTP response.
type streamWriter interface {
	io.Writer
	http.Flusher
}

// SSEConnection implements Connection over a long-lived text/event-stream
// response. All writes happen on the handler goroutine inside Run; Send
// only enqueues.
type SSEConnection struct {
	id       string
	identity string
	writer   streamWriter

	send chan *Event

	keepAlive time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger
}

// NewSSEConnection prepares an SSE connection on w. The parent context
// should be the request context so a client abort tears the stream down.
func NewSSEConnection(
	ctx context.Context,
	id string,
	identity string,
	w http.ResponseWriter,
	keepAlive time.Duration,
	log logger.Logger,
) (*SSEConnection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	rctx, cancel := context.WithCancel(ctx)

	conn := &SSEConnection{
		id:       id,
		identity: identity,
		writer: struct {
			io.Writer
			http.Flusher
		}{w, flusher},
		send:      make(chan *Event, sendQueueSize),
		keepAlive: keepAlive,
		ctx:       rctx,
		cancel:    cancel,
		logger:    log.WithField("connection_id", id),
	}

	conn.writeHeaders(w)
	return conn, nil
}

func (c *SSEConnection) ID() string        { return c.id }
func (c *SSEConnection) Transport() string { return "sse" }
func (c *SSEConnection) Identity() string  { return c.identity }

// Send enqueues an event for the write loop. It never blocks: a full
// queue means the client cannot keep up, so the connection is closed and
// the caller tears it down.
func (c *SSEConnection) Send(event *Event) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- event:
		return nil
	default:
		c.logger.Warn("send queue overflow, closing slow SSE consumer")
		c.Close()
		return ErrSendBufferFull
	}
}

// Run streams queued events and keep-alive comments until the connection
// dies. It must be called on the handler goroutine and returns once the
// connection is closed from either side.
func (c *SSEConnection) Run() {
	ticker := time.NewTicker(c.keepAlive)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			if err := sse.Encode(c.writer, sse.Event{Data: event}); err != nil {
				c.logger.Errorf("failed to write event: %v", err)
				return
			}
			c.writer.Flush()

		case <-ticker.C:
			if _, err := io.WriteString(c.writer, ": keepalive\n\n"); err != nil {
				c.logger.Errorf("failed to write keep-alive: %v", err)
				return
			}
			c.writer.Flush()

		case <-c.ctx.Done():
			return
		}
	}
}

// Close is idempotent.
func (c *SSEConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	c.logger.Info("SSE connection closed")
	return nil
}

func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

func (c *SSEConnection) writeHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx buffering breaks SSE
}
