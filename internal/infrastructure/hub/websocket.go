package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-chat-stream/internal/infrastructure/logger"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketConnection implements Connection over an upgraded WebSocket.
// The channel is push-only: inbound frames are read for liveness and
// discarded. Each event goes out as one JSON text frame.
type WebSocketConnection struct {
	id       string
	identity string
	conn     *websocket.Conn

	send chan *Event

	pingInterval time.Duration
	pongWait     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger
}

// NewWebSocketConnection wraps an already-upgraded socket and starts its
// read and write pumps. Authentication must have happened before the
// upgrade; conn carries an identity from the start.
func NewWebSocketConnection(
	id string,
	identity string,
	conn *websocket.Conn,
	pingInterval time.Duration,
	log logger.Logger,
) *WebSocketConnection {
	ctx, cancel := context.WithCancel(context.Background())

	wsConn := &WebSocketConnection{
		id:           id,
		identity:     identity,
		conn:         conn,
		send:         make(chan *Event, sendQueueSize),
		pingInterval: pingInterval,
		pongWait:     4 * pingInterval,
		ctx:          ctx,
		cancel:       cancel,
		logger:       log.WithField("connection_id", id),
	}

	conn.SetReadDeadline(time.Now().Add(wsConn.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsConn.pongWait))
	})

	go wsConn.writePump()
	go wsConn.readPump()

	return wsConn
}

func (c *WebSocketConnection) ID() string        { return c.id }
func (c *WebSocketConnection) Transport() string { return "websocket" }
func (c *WebSocketConnection) Identity() string  { return c.identity }

// Send enqueues an event for the write pump without blocking. Overflow
// closes the connection; a stalled socket must not hold up the bus.
func (c *WebSocketConnection) Send(event *Event) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- event:
		return nil
	default:
		c.logger.Warn("send queue overflow, closing slow WebSocket consumer")
		c.Close()
		return ErrSendBufferFull
	}
}

// Close is idempotent. It cancels the connection context, attempts a
// clean close frame, and releases the socket.
func (c *WebSocketConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	// WriteControl is safe to call concurrently with the write pump.
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout),
	)
	c.conn.Close()

	c.logger.Info("WebSocket connection closed")
	return nil
}

func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

// writePump serializes queued events onto the socket and owns this
// connection's keep-alive ticker. A failed write of either kind ends the
// pump, which closes the connection and cancels the ticker with it.
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Errorf("failed to write event: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("failed to send ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump drains inbound frames. Clients have nothing meaningful to say
// on this channel, so frames are discarded; reading still services pong
// frames and detects the peer going away.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Errorf("WebSocket read error: %v", err)
			}
			return
		}
	}
}
