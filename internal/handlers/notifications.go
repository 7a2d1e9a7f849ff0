package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/middleware"
	"github.com/legalbridge/legalbridge/internal/notifications"
	appErrors "github.com/legalbridge/legalbridge/pkg/errors"
	"github.com/legalbridge/legalbridge/pkg/response"
)

// NotificationHandler exposes the stored in-app notices over HTTP.
type NotificationHandler struct {
	service *notifications.Service
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *notifications.Service) (*NotificationHandler, error) {
	if service == nil {
		return nil, appErrors.ErrInternalServer
	}
	return &NotificationHandler{service: service}, nil
}

// List returns notifications for the current user, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	unreadOnly := strings.EqualFold(c.Query("unread"), "true")
	limit := parseIntQuery(c, "limit", 0)

	items, err := h.service.List(requestContext(c), userID, unreadOnly, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// UnreadCount reports the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// MarkRead flips a single notification to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.MarkRead(requestContext(c), userID, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// MarkAllRead flips every unread notification of the user.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}
