package websocket

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
)

// WebSocketHandler upgrades authenticated HTTP requests to WebSocket
// connections and attaches them to the hub.
type WebSocketHandler struct {
	hub           *hub.Hub
	authenticator *auth.TokenAuthenticator
	keepAlive     time.Duration
	logger        logger.Logger
	upgrader      websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler instance
func NewWebSocketHandler(
	hubInstance *hub.Hub,
	authenticator *auth.TokenAuthenticator,
	keepAlive time.Duration,
	log logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hubInstance,
		authenticator: authenticator,
		keepAlive:     keepAlive,
		logger:        log.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from any origin for development
				// In production, you should implement proper origin checking
				return true
			},
		},
	}
}

// Connect handles WebSocket connection upgrade requests. The session
// cookie is verified before the upgrade; unauthenticated requests are
// rejected as plain HTTP and never reach the socket layer.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.hub.IsRunning() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	identity, err := h.authenticator.Authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized",
		})
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	connID := generateWebSocketConnectionID()
	wsConn := hub.NewWebSocketConnection(connID, identity.Username, conn, h.keepAlive, h.logger)

	if err := h.hub.Attach(wsConn); err != nil {
		h.logger.Errorf("Failed to attach WebSocket connection: %v", err)
		wsConn.Close()
		return
	}

	h.logger.Infof("WebSocket connection %s attached for %s", wsConn.ID(), identity.Username)

	// Keep the handler alive until client disconnects
	<-wsConn.Context().Done()
	h.hub.Detach(wsConn.ID())
	h.logger.Infof("WebSocket connection %s disconnected", wsConn.ID())
}

// Connections returns information about WebSocket connections
func (h *WebSocketHandler) Connections(c *gin.Context) {
	connections := h.hub.GetConnectionsByTransport("websocket")
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":        conn.ID(),
			"transport": conn.Transport(),
			"identity":  conn.Identity(),
			"closed":    conn.IsClosed(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"hub_running":       h.hub.IsRunning(),
	})
}

// generateWebSocketConnectionID generates a unique WebSocket connection ID
func generateWebSocketConnectionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("ws-%x", b)
}
