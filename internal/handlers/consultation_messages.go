package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/legalbridge/legalbridge/internal/middleware"
	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/services"
	appErrors "github.com/legalbridge/legalbridge/pkg/errors"
	"github.com/legalbridge/legalbridge/pkg/response"
)

// MessageHandler exposes the consultation message thread over HTTP.
type MessageHandler struct {
	lifecycle *services.SessionLifecycleService
	threads   *services.MessageThreadService
}

// NewMessageHandler constructs the thread handler.
func NewMessageHandler(lifecycle *services.SessionLifecycleService, threads *services.MessageThreadService) (*MessageHandler, error) {
	if lifecycle == nil || threads == nil {
		return nil, appErrors.ErrInternalServer
	}
	return &MessageHandler{lifecycle: lifecycle, threads: threads}, nil
}

// resolveSession loads the session and checks the caller participates.
func (h *MessageHandler) resolveSession(c *gin.Context) (*models.ConsultationSession, string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, "", false
	}

	session, err := h.lifecycle.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return nil, "", false
	}
	if h.lifecycle.ResolveRole(session, userID) == services.ParticipantNone {
		response.Error(c, appErrors.ErrNotParticipant)
		return nil, "", false
	}

	return session, userID, true
}

// List returns the full thread in stable order. Fetching the thread counts
// as reading it: every counterpart message is marked read before the list is
// assembled, so the payload reflects the receipt it just produced. The
// explicit read route stays for clients that poll without rendering.
func (h *MessageHandler) List(c *gin.Context) {
	session, userID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	if _, err := h.threads.MarkRead(requestContext(c), session.ID, userID); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	messages, err := h.threads.List(requestContext(c), session.ID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, messages)
}

// Post appends a message authored by the caller.
func (h *MessageHandler) Post(c *gin.Context) {
	session, userID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	var payload struct {
		Content  string `json:"content"`
		FilePath string `json:"file_path"`
		FileName string `json:"file_name"`
		FileMime string `json:"file_mime"`
		FileSize int64  `json:"file_size" validate:"omitempty,min=0"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	params := services.AppendParams{
		Session:  session,
		SenderID: userID,
		Content:  payload.Content,
	}
	if strings.TrimSpace(payload.FilePath) != "" || strings.TrimSpace(payload.FileName) != "" {
		params.File = &services.FileMeta{
			Path: payload.FilePath,
			Name: payload.FileName,
			Mime: payload.FileMime,
			Size: payload.FileSize,
		}
	}

	message, err := h.threads.Append(requestContext(c), params)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusCreated, message)
}

// MarkRead flips every counterpart message to read and reports how many changed.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	session, userID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	updated, err := h.threads.MarkRead(requestContext(c), session.ID, userID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkOneRead flips a single message addressed to the caller.
func (h *MessageHandler) MarkOneRead(c *gin.Context) {
	session, userID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	messageID, err := strconv.ParseInt(strings.TrimSpace(c.Param("messageID")), 10, 64)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("message id must be an integer"))
		return
	}

	if err := h.threads.MarkOneRead(requestContext(c), session.ID, messageID, userID); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// UnreadCount reports how many counterpart messages the caller has not read.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	session, userID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	count, err := h.threads.UnreadCount(requestContext(c), session.ID, userID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread": count})
}
