package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/config"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
	"go-chat-stream/internal/interfaces/rest/v1/handler"
	"go-chat-stream/internal/interfaces/sse"
	"go-chat-stream/internal/interfaces/websocket"
	"go-chat-stream/internal/store"
)

func InitRouter(
	cfg *config.Config,
	hubInstance *hub.Hub,
	st *store.Store,
	authenticator *auth.TokenAuthenticator,
	log logger.Logger,
) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		isRunning := hubInstance.IsRunning()
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"hub_running": isRunning,
			"connections": hubInstance.ConnectionCount(),
		})
	})

	authHandler := handler.NewAuthHandler(st, authenticator, log)
	authGroup := rootGroup.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", middleware.RequireAuth(authenticator), authHandler.Me)
	}

	adminGroup := rootGroup.Group("/api/admin")
	adminGroup.Use(middleware.RequireAuth(authenticator), middleware.RequireAdmin())
	{
		adminGroup.GET("/users/pending", authHandler.PendingUsers)
		adminGroup.GET("/users/approved", authHandler.ApprovedUsers)
		adminGroup.POST("/users/approve", authHandler.Approve)
	}

	chatHandler := handler.NewChatHandler(hubInstance, st, log)
	apiGroup := rootGroup.Group("/api")
	apiGroup.Use(middleware.RequireAuth(authenticator))
	{
		apiGroup.GET("/channels", chatHandler.ListChannels)
		apiGroup.POST("/channels", chatHandler.CreateChannel)
		apiGroup.GET("/channels/:id/members", chatHandler.ChannelMembers)
		apiGroup.GET("/messages", chatHandler.ListMessages)
		apiGroup.POST("/messages", chatHandler.SendMessage)
		apiGroup.POST("/messages/typing", chatHandler.Typing)
		apiGroup.POST("/reactions", chatHandler.AddReaction)
		apiGroup.GET("/users/active", chatHandler.ActiveUsers)
	}

	sse.InitSSERouter(log, hubInstance, authenticator, cfg.KeepAliveInterval, rootGroup)
	websocket.InitWebSocketRouter(log, hubInstance, authenticator, cfg.KeepAliveInterval, rootGroup)

	return router
}
