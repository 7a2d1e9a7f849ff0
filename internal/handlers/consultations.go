package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/middleware"
	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/services"
	appErrors "github.com/legalbridge/legalbridge/pkg/errors"
	"github.com/legalbridge/legalbridge/pkg/response"
)

// ConsultationHandler exposes the session lifecycle over HTTP. Every route is
// addressed by the opaque session token; participant capability is resolved
// per request from the session row.
type ConsultationHandler struct {
	lifecycle *services.SessionLifecycleService
	analytics *services.AnalyticsService
}

// NewConsultationHandler constructs the lifecycle handler.
func NewConsultationHandler(db *gorm.DB, lifecycle *services.SessionLifecycleService, analytics *services.AnalyticsService) (*ConsultationHandler, error) {
	if db == nil {
		return nil, appErrors.ErrInternalServer
	}
	return &ConsultationHandler{lifecycle: lifecycle, analytics: analytics}, nil
}

type sessionView struct {
	services.SessionSnapshot
	AppointmentID string  `json:"appointment_id"`
	Role          string  `json:"role"`
	ClientName    string  `json:"client_name,omitempty"`
	LawyerName    string  `json:"lawyer_name,omitempty"`
	Rating        *int    `json:"satisfaction_rating,omitempty"`
	EndedByID     *string `json:"ended_by_id,omitempty"`
}

func (h *ConsultationHandler) view(session *models.ConsultationSession, userID string) sessionView {
	view := sessionView{
		SessionSnapshot: h.lifecycle.Snapshot(session, userID),
		AppointmentID:   session.AppointmentID,
		Role:            string(h.lifecycle.ResolveRole(session, userID)),
		Rating:          session.SatisfactionRating,
		EndedByID:       session.EndedByID,
	}
	if session.Client != nil {
		view.ClientName = session.Client.DisplayName
	}
	if session.Lawyer != nil {
		view.LawyerName = session.Lawyer.DisplayName
	}
	return view
}

// CreateForAppointment derives (or returns) the session of an appointment.
func (h *ConsultationHandler) CreateForAppointment(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	appointmentID := strings.TrimSpace(c.Param("id"))
	session, err := h.lifecycle.CreateOrGetSession(requestContext(c), appointmentID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	// Only the two booked participants may obtain the token.
	if h.lifecycle.ResolveRole(session, userID) == services.ParticipantNone {
		response.Error(c, appErrors.ErrNotParticipant)
		return
	}

	response.Success(c, http.StatusOK, h.view(session, userID))
}

// Get returns the lifecycle snapshot for the caller.
func (h *ConsultationHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.lifecycle.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	if h.lifecycle.ResolveRole(session, userID) == services.ParticipantNone {
		response.Error(c, appErrors.ErrNotParticipant)
		return
	}

	response.Success(c, http.StatusOK, h.view(session, userID))
}

// Join records the caller's entry into the session.
func (h *ConsultationHandler) Join(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.lifecycle.Join(requestContext(c), c.Param("token"), userID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, h.view(session, userID))
}

// End terminates the session.
func (h *ConsultationHandler) End(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason" validate:"omitempty,oneof=completed cancelled timeout"`
	}
	if c.Request != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &payload) {
			return
		}
	}

	session, err := h.lifecycle.EndSession(requestContext(c), c.Param("token"), userID, models.EndReason(payload.Reason))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, h.view(session, userID))
}

// Rate stores the client's satisfaction rating for an ended session.
func (h *ConsultationHandler) Rate(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Rating int `json:"rating" validate:"required,min=1,max=5"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	session, err := h.lifecycle.RateSession(requestContext(c), c.Param("token"), userID, payload.Rating)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, h.view(session, userID))
}

// Analytics returns the stored roll-up of an ended session.
func (h *ConsultationHandler) Analytics(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.lifecycle.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	if h.lifecycle.ResolveRole(session, userID) == services.ParticipantNone {
		response.Error(c, appErrors.ErrNotParticipant)
		return
	}

	record, err := h.analytics.Get(requestContext(c), session.ID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, record)
}
