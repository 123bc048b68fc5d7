package sse

import (
	"time"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
)

func InitSSERouter(
	log logger.Logger,
	hubInstance *hub.Hub,
	authenticator *auth.TokenAuthenticator,
	keepAlive time.Duration,
	rg *gin.RouterGroup,
) {
	sseHandler := NewServerSentEventHandler(hubInstance, keepAlive, log)

	// The stream rides ordinary HTTP, so auth runs per request.
	rg.GET("/api/messages/stream", middleware.RequireAuth(authenticator), sseHandler.Stream)

	rg.GET("/api/v1/sse/connections",
		middleware.RequireAuth(authenticator),
		middleware.RequireAdmin(),
		sseHandler.Connections,
	)
}
