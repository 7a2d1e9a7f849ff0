package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/legalbridge/legalbridge/internal/auth"
	"github.com/legalbridge/legalbridge/internal/realtime"
	"github.com/legalbridge/legalbridge/internal/services"
	appErrors "github.com/legalbridge/legalbridge/pkg/errors"
	"github.com/legalbridge/legalbridge/pkg/response"
)

// RealtimeHandler upgrades authenticated clients onto the websocket hub.
// Browsers cannot set headers on websocket dials, so the bearer token is also
// accepted as a query parameter.
type RealtimeHandler struct {
	hub       *realtime.Hub
	jwt       *iauth.JWTService
	lifecycle *services.SessionLifecycleService
}

// NewRealtimeHandler constructs the websocket handler.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService, lifecycle *services.SessionLifecycleService) (*RealtimeHandler, error) {
	if hub == nil || jwt == nil || lifecycle == nil {
		return nil, appErrors.ErrInternalServer
	}
	return &RealtimeHandler{hub: hub, jwt: jwt, lifecycle: lifecycle}, nil
}

// Stream serves the multiplexed websocket. Clients pass the streams they want
// via the comma-separated "streams" query parameter; the allowed set is the
// user's notification stream plus the room stream of every consultation the
// user participates in among those requested.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requested := splitStreams(c.Query("streams"))
	if len(requested) == 0 {
		requested = []string{realtime.StreamNotifications}
	}

	allowed := map[string]struct{}{
		realtime.StreamNotifications: {},
	}
	for _, stream := range requested {
		sessionToken := realtime.ConsultationToken(stream)
		if sessionToken == "" {
			continue
		}
		session, err := h.lifecycle.GetByToken(requestContext(c), sessionToken)
		if err != nil {
			continue
		}
		if h.lifecycle.ResolveRole(session, claims.UserID) == services.ParticipantNone {
			continue
		}
		allowed[realtime.ConsultationStream(session.Token)] = struct{}{}
	}

	h.hub.Serve(claims.UserID, requested, allowed, c.Writer, c.Request)
}

func splitStreams(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
