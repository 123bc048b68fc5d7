package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
	"go-chat-stream/internal/store"
)

const maxMessageLength = 2000

type ChatHandler struct {
	hub    *hub.Hub
	store  *store.Store
	logger logger.Logger
}

type CreateChannelRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Visibility  string   `json:"visibility"`
	Members     []string `json:"members"`
}

type SendMessageRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

type TypingRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

type ReactionRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	GifURL    string `json:"gif_url"`
	GifID     string `json:"gif_id"`
	Emoji     string `json:"emoji"`
}

func NewChatHandler(hubInstance *hub.Hub, st *store.Store, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		hub:    hubInstance,
		store:  st,
		logger: log.WithField("handler", "chat"),
	}
}

func (h *ChatHandler) ListChannels(c *gin.Context) {
	identity := middleware.Identity(c)

	channels, err := h.store.ChannelsForUser(c.Request.Context(), identity.Username, identity.Role)
	if err != nil {
		h.logger.Errorf("Failed to list channels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list channels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h *ChatHandler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = "public"
	}
	if visibility != "public" && visibility != "private" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid visibility"})
		return
	}

	identity := middleware.Identity(c)

	members := req.Members
	if visibility == "private" {
		// The creator always belongs to their own private channel.
		found := false
		for _, m := range members {
			if m == identity.Username {
				found = true
				break
			}
		}
		if !found {
			members = append(members, identity.Username)
		}
	}

	channel, err := h.store.CreateChannel(
		c.Request.Context(), req.Name, req.Description, visibility, members)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidChannelName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel name"})
		case errors.Is(err, store.ErrChannelTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Channel already exists"})
		default:
			h.logger.Errorf("Failed to create channel: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		}
		return
	}

	h.logger.Infof("Channel %s (%s) created by %s", channel.Name, channel.ID, identity.Username)

	c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

func (h *ChatHandler) ChannelMembers(c *gin.Context) {
	channelID := c.Param("id")

	if !h.requireChannelAccess(c, channelID) {
		return
	}

	members, err := h.store.ChannelMembers(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Errorf("Failed to list channel members: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	channelID := c.Query("channel_id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
		return
	}

	if !h.requireChannelAccess(c, channelID) {
		return
	}

	messages, err := h.store.MessagesByChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		h.logger.Errorf("Failed to list messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}

	messageIDs := make([]string, len(messages))
	for i, m := range messages {
		messageIDs[i] = m.ID
	}

	reactions, err := h.store.ReactionsForMessages(c.Request.Context(), messageIDs)
	if err != nil {
		h.logger.Errorf("Failed to load reactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":  messages,
		"reactions": reactions,
	})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid message format",
		})
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || utf8.RuneCountInString(content) > maxMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message content"})
		return
	}

	if !h.requireChannelAccess(c, req.ChannelID) {
		return
	}

	identity := middleware.Identity(c)

	message, err := h.store.CreateMessage(
		c.Request.Context(), req.ChannelID, identity.Username, content)
	if err != nil {
		if errors.Is(err, store.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		h.logger.Errorf("Failed to store message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	h.hub.Publish(hub.NewMessageEvent(message))

	h.logger.Infof(
		"Message %s sent by %s to %d connections",
		message.ID, identity.Username, h.hub.ConnectionCount(),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":  "sent",
		"message": message,
	})
}

func (h *ChatHandler) Typing(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	if !h.requireChannelAccess(c, req.ChannelID) {
		return
	}

	identity := middleware.Identity(c)
	h.store.TouchActive(c.Request.Context(), identity.Username)

	h.hub.Publish(hub.NewTypingEvent(store.TypingNotice{
		ChannelID: req.ChannelID,
		ProfileID: identity.Username,
	}))

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *ChatHandler) AddReaction(c *gin.Context) {
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	if req.Emoji == "" && req.GifURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reaction needs an emoji or gif"})
		return
	}

	identity := middleware.Identity(c)

	reaction, err := h.store.AddReaction(
		c.Request.Context(), req.MessageID, identity.Username, req.GifURL, req.GifID, req.Emoji)
	if err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		h.logger.Errorf("Failed to store reaction: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add reaction"})
		return
	}

	h.hub.Publish(hub.NewReactionEvent(reaction))

	c.JSON(http.StatusOK, gin.H{"reaction": reaction})
}

func (h *ChatHandler) ActiveUsers(c *gin.Context) {
	users, err := h.store.ActiveUsers(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list active users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list active users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// requireChannelAccess writes the error response itself and reports
// whether the caller may proceed.
func (h *ChatHandler) requireChannelAccess(c *gin.Context, channelID string) bool {
	identity := middleware.Identity(c)

	ok, err := h.store.CanAccessChannel(
		c.Request.Context(), channelID, identity.Username, identity.Role)
	if err != nil {
		if errors.Is(err, store.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return false
		}
		h.logger.Errorf("Failed to check channel access: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return false
	}
	return true
}
