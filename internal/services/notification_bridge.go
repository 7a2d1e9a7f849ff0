package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/monitoring"
	"github.com/legalbridge/legalbridge/pkg/logger"
)

// ParticipantJoinedEvent notifies the counterpart that the other side is in
// the room.
type ParticipantJoinedEvent struct {
	SessionToken      string
	JoinerID          string
	JoinerDisplayName string
	Role              ParticipantRole
	CounterpartID     string
	JoinedAt          time.Time
}

// SessionEndedEvent notifies the counterpart that the session reached a
// terminal state.
type SessionEndedEvent struct {
	SessionToken    string
	Reason          models.EndReason
	DurationMinutes int
	EndedByID       string
	CounterpartID   string
}

// MessagePostedEvent carries a display summary of a new thread entry. It
// never includes file bytes.
type MessagePostedEvent struct {
	SessionToken      string
	MessageID         int64
	SenderID          string
	SenderDisplayName string
	Preview           string
	HasFile           bool
	RecipientID       string
}

// NotificationBridge pushes lifecycle and thread events to the counterpart
// participant. Implementations are fire-and-forget collaborators: a failed
// delivery must never block or roll back the triggering operation, so core
// services only log returned errors.
type NotificationBridge interface {
	ParticipantJoined(ctx context.Context, event ParticipantJoinedEvent) error
	SessionEnded(ctx context.Context, event SessionEndedEvent) error
	MessagePosted(ctx context.Context, event MessagePostedEvent) error
}

// notifyBestEffort runs a bridge call and swallows its error after logging
// and counting it.
func notifyBestEffort(event string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		logger.WithModule("notification-bridge").Warn("delivery failed",
			zap.String("event", event),
			zap.Error(err),
		)
		monitoring.RecordNotificationPush("error")
		return
	}
	monitoring.RecordNotificationPush("success")
}
