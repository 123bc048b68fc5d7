package sse

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
)

// ServerSentEventHandler serves the text/event-stream fallback transport
// for clients behind proxies that cannot hold a WebSocket upgrade.
type ServerSentEventHandler struct {
	hub       *hub.Hub
	keepAlive time.Duration
	logger    logger.Logger
}

func NewServerSentEventHandler(
	hubInstance *hub.Hub,
	keepAlive time.Duration,
	log logger.Logger,
) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:       hubInstance,
		keepAlive: keepAlive,
		logger:    log.WithField("handler", "sse"),
	}
}

// Stream opens the event stream. Authentication has already run in the
// middleware chain; an unauthenticated request never reaches here, so no
// stream is ever opened for one.
func (h *ServerSentEventHandler) Stream(c *gin.Context) {
	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "service temporarily unavailable",
		})
		return
	}

	identity := middleware.Identity(c)
	connID := generateConnectionID()

	conn, err := hub.NewSSEConnection(
		c.Request.Context(),
		connID,
		identity.Username,
		c.Writer,
		h.keepAlive,
		h.logger,
	)
	if err != nil {
		h.logger.Errorf("failed to open SSE stream: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "streaming not supported",
		})
		return
	}

	if err := h.hub.Attach(conn); err != nil {
		h.logger.Errorf("failed to attach SSE connection: %v", err)
		conn.Close()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "service temporarily unavailable",
		})
		return
	}

	h.logger.Infof("SSE connection %s streaming for %s", conn.ID(), identity.Username)

	// Push the headers out before the first keep-alive tick.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	// Run blocks on the handler goroutine until the connection dies;
	// reconnecting is the client's job.
	conn.Run()
	h.hub.Detach(conn.ID())

	h.logger.Infof("SSE connection %s closed", conn.ID())
}

// Connections reports live SSE connections for diagnostics.
func (h *ServerSentEventHandler) Connections(c *gin.Context) {
	conns := h.hub.GetConnectionsByTransport("sse")
	info := make([]gin.H, len(conns))
	for i, conn := range conns {
		info[i] = gin.H{
			"id":   conn.ID(),
			"user": conn.Identity(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(conns),
		"connections":       info,
	})
}

func generateConnectionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("sse-%x", b)
}
