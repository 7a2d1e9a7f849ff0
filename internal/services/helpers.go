package services

import (
	"context"
	"math"
	"time"

	"github.com/legalbridge/legalbridge/internal/models"
)

// ParticipantRole is the resolved capability of an identity within a session.
type ParticipantRole string

const (
	ParticipantClient ParticipantRole = "client"
	ParticipantLawyer ParticipantRole = "lawyer"
	ParticipantNone   ParticipantRole = "none"
)

// SenderRole maps the participant role onto the message sender role.
func (r ParticipantRole) SenderRole() models.SenderRole {
	switch r {
	case ParticipantClient:
		return models.SenderClient
	case ParticipantLawyer:
		return models.SenderLawyer
	default:
		return models.SenderSystem
	}
}

// resolveParticipantRole is the single identity comparison used by join,
// messaging and authorization paths. Client-supplied roles are never trusted.
func resolveParticipantRole(session *models.ConsultationSession, identity string) ParticipantRole {
	switch identity {
	case "":
		return ParticipantNone
	case session.ClientID:
		return ParticipantClient
	case session.LawyerID:
		return ParticipantLawyer
	default:
		return ParticipantNone
	}
}

// counterpartID returns the other participant's identity.
func counterpartID(session *models.ConsultationSession, identity string) string {
	if identity == session.ClientID {
		return session.LawyerID
	}
	return session.ClientID
}

// wholeMinutesUntil returns the number of whole minutes from now until at,
// rounding partial minutes up. Zero when the instant has passed. The ceiling
// convention means "minutes_until_join = 1" covers the entire last minute
// before the window opens.
func wholeMinutesUntil(now, at time.Time) int {
	diff := at.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Minutes()))
}

// wholeMinutesRemaining returns the floor of minutes left until at, never
// negative.
func wholeMinutesRemaining(now, at time.Time) int {
	diff := at.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(diff.Minutes())
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
