package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/interfaces/middleware"
	"go-chat-stream/internal/store"
)

type AuthHandler struct {
	store         *store.Store
	authenticator *auth.TokenAuthenticator
	logger        logger.Logger
}

type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ApproveRequest struct {
	Username string `json:"username" binding:"required"`
}

func NewAuthHandler(
	st *store.Store,
	authenticator *auth.TokenAuthenticator,
	log logger.Logger,
) *AuthHandler {
	return &AuthHandler{
		store:         st,
		authenticator: authenticator,
		logger:        log.WithField("handler", "auth"),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	user, err := h.store.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		case errors.Is(err, store.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts, try again later"})
		case errors.Is(err, store.ErrInvalidUsername), errors.Is(err, store.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Errorf("Failed to register user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	h.logger.Infof("Registered user %s with status %s", user.Username, user.Status)

	c.JSON(http.StatusCreated, gin.H{
		"username": user.Username,
		"role":     user.Role,
		"status":   user.Status,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	user, err := h.store.AuthenticateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPendingApproval):
			c.JSON(http.StatusForbidden, gin.H{"error": "Account pending approval"})
		case errors.Is(err, store.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts, try again later"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		}
		return
	}

	token, err := h.authenticator.IssueToken(user.Username, user.Role, user.Status)
	if err != nil {
		h.logger.Errorf("Failed to issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	http.SetCookie(c.Writer, h.authenticator.SessionCookie(token))

	h.logger.Infof("User %s logged in", user.Username)

	c.JSON(http.StatusOK, gin.H{
		"username": user.Username,
		"role":     user.Role,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.authenticator.ExpiredSessionCookie())
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.Identity(c)
	c.JSON(http.StatusOK, gin.H{
		"username": identity.Username,
		"role":     identity.Role,
	})
}

func (h *AuthHandler) PendingUsers(c *gin.Context) {
	users, err := h.store.PendingUsers(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list pending users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AuthHandler) ApprovedUsers(c *gin.Context) {
	users, err := h.store.ApprovedUsers(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to list approved users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AuthHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	user, err := h.store.ApproveUser(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Errorf("Failed to approve user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Approval failed"})
		return
	}

	h.logger.Infof("User %s approved by %s", user.Username, middleware.Identity(c).Username)

	c.JSON(http.StatusOK, gin.H{"status": "approved", "username": user.Username})
}
