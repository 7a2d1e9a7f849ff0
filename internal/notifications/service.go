package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/realtime"
	"github.com/legalbridge/legalbridge/internal/services"
)

// Notification type identifiers written to storage and the wire.
const (
	TypeParticipantJoined = "consultation.participant_joined"
	TypeSessionEnded      = "consultation.session_ended"
	TypeMessagePosted     = "consultation.message_posted"
)

const defaultListLimit = 50

// Service is the delivery side of the consultation notification bridge: it
// persists a Notification row for the counterpart and pushes a realtime frame
// to their notification stream plus the session room stream. It satisfies
// services.NotificationBridge; the lifecycle and thread services treat every
// call as fire-and-forget.
type Service struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewService constructs the notification service. The hub may be nil, in
// which case rows are still written and only the push is skipped.
func NewService(db *gorm.DB, hub *realtime.Hub) (*Service, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &Service{db: db, hub: hub}, nil
}

// ParticipantJoined records and pushes the "other side is in the room" notice.
func (s *Service) ParticipantJoined(ctx context.Context, event services.ParticipantJoinedEvent) error {
	metadata := map[string]any{
		"session_token": event.SessionToken,
		"role":          string(event.Role),
		"joined_at":     event.JoinedAt,
	}

	notification, err := s.store(ctx, event.CounterpartID, TypeParticipantJoined,
		"Participant joined",
		fmt.Sprintf("%s joined the consultation", event.JoinerDisplayName),
		"info", metadata)
	if err != nil {
		return err
	}

	s.push(event.CounterpartID, event.SessionToken, "participant_joined", notification)
	return nil
}

// SessionEnded records and pushes the terminal notice.
func (s *Service) SessionEnded(ctx context.Context, event services.SessionEndedEvent) error {
	metadata := map[string]any{
		"session_token":    event.SessionToken,
		"reason":           string(event.Reason),
		"duration_minutes": event.DurationMinutes,
	}

	notification, err := s.store(ctx, event.CounterpartID, TypeSessionEnded,
		"Consultation ended",
		fmt.Sprintf("The consultation ended (%s) after %d minute(s)", event.Reason, event.DurationMinutes),
		"info", metadata)
	if err != nil {
		return err
	}

	s.push(event.CounterpartID, event.SessionToken, "session_ended", notification)
	return nil
}

// MessagePosted records and pushes a preview of a new thread entry. File
// bytes never travel through notifications; only the reference metadata does.
func (s *Service) MessagePosted(ctx context.Context, event services.MessagePostedEvent) error {
	metadata := map[string]any{
		"session_token": event.SessionToken,
		"message_id":    event.MessageID,
		"has_file":      event.HasFile,
	}

	body := event.Preview
	if body == "" && event.HasFile {
		body = "Sent a file"
	}

	notification, err := s.store(ctx, event.RecipientID, TypeMessagePosted,
		fmt.Sprintf("New message from %s", event.SenderDisplayName),
		body, "info", metadata)
	if err != nil {
		return err
	}

	s.push(event.RecipientID, event.SessionToken, "message_posted", notification)
	return nil
}

func (s *Service) store(ctx context.Context, userID, kind, title, message, severity string, metadata map[string]any) (*models.Notification, error) {
	if userID == "" {
		return nil, errors.New("notification service: recipient is required")
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	notification := models.Notification{
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Message:  message,
		Severity: severity,
		Metadata: payload,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (s *Service) push(userID, sessionToken, event string, notification *models.Notification) {
	if s.hub == nil {
		return
	}

	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
		Event: event,
		Data:  notification,
	})
	if stream := realtime.ConsultationStream(sessionToken); stream != "" {
		s.hub.BroadcastStream(stream, realtime.Message{
			Event: event,
			Data:  notification.Metadata,
		})
	}
}

// List returns the user's notifications, newest first, optionally only the
// unread ones.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var out []models.Notification
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount counts the user's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips a single notification owned by the user.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", notificationID, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// MarkAllRead flips every unread notification of the user and reports how
// many were touched.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// DeleteOlderThan removes read notifications created before the cutoff.
// Used by the retention job.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
