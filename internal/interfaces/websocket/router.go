package websocket

import (
	"time"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(
	log logger.Logger,
	hubInstance *hub.Hub,
	authenticator *auth.TokenAuthenticator,
	keepAlive time.Duration,
	rg *gin.RouterGroup,
) {
	wsHandler := NewWebSocketHandler(hubInstance, authenticator, keepAlive, log)

	// WebSocket connection endpoint; auth happens inside Connect so
	// failures are rejected before the upgrade.
	wsGroup := rg.Group("/ws")
	wsGroup.GET("", wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections",
		middleware.RequireAuth(authenticator),
		middleware.RequireAdmin(),
		wsHandler.Connections,
	)
}
