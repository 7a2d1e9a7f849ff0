package services

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/monitoring"
)

const (
	maxMessageLength = 4000
	listBatchSize    = 200
)

// FileMeta references an uploaded attachment. Blob storage is owned by an
// external subsystem; the thread only records the pointer.
type FileMeta struct {
	Path string
	Name string
	Mime string
	Size int64
}

// AppendParams carries the payload required to post a thread message.
type AppendParams struct {
	Session  *models.ConsultationSession
	SenderID string
	Content  string
	File     *FileMeta
}

// ThreadStats summarises the human side of a thread for the analytics
// roll-up. System notices are excluded from every field.
type ThreadStats struct {
	Total          int
	ClientMessages int
	LawyerMessages int
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
}

// MessageThreadService owns the append-only message thread of a consultation
// session: appends, system notices, ordering and read receipts.
type MessageThreadService struct {
	db      *gorm.DB
	bridge  NotificationBridge
	timeNow func() time.Time
}

// MessageThreadOption customises the thread service.
type MessageThreadOption func(*MessageThreadService)

// WithThreadClock overrides the clock used for timestamps (test helper).
func WithThreadClock(clock func() time.Time) MessageThreadOption {
	return func(s *MessageThreadService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// WithThreadBridge wires the fire-and-forget counterpart push for new
// participant messages.
func WithThreadBridge(bridge NotificationBridge) MessageThreadOption {
	return func(s *MessageThreadService) {
		s.bridge = bridge
	}
}

// NewMessageThreadService constructs the thread store once the database is supplied.
func NewMessageThreadService(db *gorm.DB, opts ...MessageThreadOption) (*MessageThreadService, error) {
	if db == nil {
		return nil, errors.New("message thread service: db is required")
	}

	svc := &MessageThreadService{db: db, timeNow: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Append persists a participant message. The sender role is derived from the
// session's two designated participants; a terminal session (including one
// that only just expired and is still stored stale) rejects the append.
func (s *MessageThreadService) Append(ctx context.Context, params AppendParams) (*models.ConsultationMessage, error) {
	if s == nil {
		return nil, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	session := params.Session
	if session == nil {
		return nil, ErrSessionNotFound
	}

	role := resolveParticipantRole(session, strings.TrimSpace(params.SenderID))
	if role == ParticipantNone {
		return nil, ErrNotParticipant
	}

	now := s.timeNow()
	if session.DeriveStatus(now).Terminal() {
		return nil, ErrInvalidSessionState
	}

	content := strings.TrimSpace(params.Content)
	if content == "" && params.File == nil {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	senderID := strings.TrimSpace(params.SenderID)
	message := models.ConsultationMessage{
		CreatedAt:  now,
		SessionID:  session.ID,
		SenderID:   &senderID,
		SenderRole: role.SenderRole(),
		Type:       models.MessageText,
		Content:    html.EscapeString(content),
	}
	if params.File != nil {
		message.Type = models.MessageFile
		message.FilePath = strings.TrimSpace(params.File.Path)
		message.FileName = strings.TrimSpace(params.File.Name)
		message.FileMime = strings.TrimSpace(params.File.Mime)
		message.FileSize = params.File.Size
	}

	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}

	monitoring.RecordMessagePosted(string(role))

	if s.bridge != nil {
		event := MessagePostedEvent{
			SessionToken:      session.Token,
			MessageID:         message.ID,
			SenderID:          senderID,
			SenderDisplayName: senderDisplayName(session, role),
			Preview:           previewOf(message.Content),
			HasFile:           message.HasFile(),
			RecipientID:       counterpartID(session, senderID),
		}
		notifyBestEffort("message_posted", func() error {
			return s.bridge.MessagePosted(ctx, event)
		})
	}

	return &message, nil
}

const previewLength = 120

// previewOf truncates content for notification payloads.
func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "…"
}

func senderDisplayName(session *models.ConsultationSession, role ParticipantRole) string {
	switch role {
	case ParticipantClient:
		if session.Client != nil && session.Client.DisplayName != "" {
			return session.Client.DisplayName
		}
		return "Client"
	case ParticipantLawyer:
		if session.Lawyer != nil && session.Lawyer.DisplayName != "" {
			return session.Lawyer.DisplayName
		}
		return "Lawyer"
	default:
		return "Participant"
	}
}

// AppendSystem stores a synthetic lifecycle notice. System entries use the
// same storage path as participant messages and are born read.
func (s *MessageThreadService) AppendSystem(ctx context.Context, sessionID, text string) (*models.ConsultationMessage, error) {
	if s == nil {
		return nil, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return nil, errors.New("message thread service: session id and text are required")
	}

	now := s.timeNow()
	message := models.ConsultationMessage{
		CreatedAt:  now,
		SessionID:  sessionID,
		SenderRole: models.SenderSystem,
		Type:       models.MessageSystem,
		Content:    text,
		IsRead:     true,
		ReadAt:     &now,
	}

	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// List returns all non-deleted messages of the session in thread order:
// chronological ascending with the insertion sequence breaking timestamp
// ties. Rows are fetched in fixed-size batches so a long thread never loads
// through a single oversized scan.
func (s *MessageThreadService) List(ctx context.Context, sessionID string) ([]models.ConsultationMessage, error) {
	if s == nil {
		return nil, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	var (
		out    []models.ConsultationMessage
		cursor *models.ConsultationMessage
	)
	for {
		query := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
		if cursor != nil {
			query = query.Where(
				"created_at > ? OR (created_at = ? AND id > ?)",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}

		var batch []models.ConsultationMessage
		err := query.
			Order("created_at ASC, id ASC").
			Limit(listBatchSize).
			Find(&batch).Error
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < listBatchSize {
			break
		}
		cursor = &batch[len(batch)-1]
	}

	return out, nil
}

// MarkRead flips every unread message not authored by the reader to read in
// one atomic update. The reader's own messages are never touched and
// repeated calls are no-ops.
func (s *MessageThreadService) MarkRead(ctx context.Context, sessionID, readerID string) (int64, error) {
	if s == nil {
		return 0, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	now := s.timeNow()
	res := s.db.WithContext(ctx).
		Model(&models.ConsultationMessage{}).
		Where("session_id = ? AND is_read = ? AND sender_id <> ?", sessionID, false, readerID).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkOneRead marks a single message read on behalf of the reader. Marking
// your own message is a no-op, as is marking an already-read one.
func (s *MessageThreadService) MarkOneRead(ctx context.Context, sessionID string, messageID int64, readerID string) error {
	if s == nil {
		return errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	var message models.ConsultationMessage
	if err := s.db.WithContext(ctx).
		First(&message, "id = ? AND session_id = ?", messageID, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if message.AuthoredBy(readerID) || message.IsRead {
		return nil
	}

	now := s.timeNow()
	return s.db.WithContext(ctx).
		Model(&models.ConsultationMessage{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error
}

// UnreadCount counts messages addressed to the identity that are still unread.
func (s *MessageThreadService) UnreadCount(ctx context.Context, sessionID, identity string) (int64, error) {
	if s == nil {
		return 0, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ConsultationMessage{}).
		Where("session_id = ? AND is_read = ? AND sender_id <> ?", sessionID, false, identity).
		Count(&count).Error
	return count, err
}

// Stats aggregates the human messages of a session for the analytics
// roll-up.
func (s *MessageThreadService) Stats(ctx context.Context, sessionID string) (ThreadStats, error) {
	if s == nil {
		return ThreadStats{}, errors.New("message thread service: service not initialised")
	}
	ctx = ensureContext(ctx)

	var rows []struct {
		SenderRole models.SenderRole
		Count      int
	}
	err := s.db.WithContext(ctx).
		Model(&models.ConsultationMessage{}).
		Select("sender_role, COUNT(*) as count").
		Where("session_id = ? AND sender_role <> ?", sessionID, models.SenderSystem).
		Group("sender_role").
		Scan(&rows).Error
	if err != nil {
		return ThreadStats{}, err
	}

	stats := ThreadStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.SenderRole {
		case models.SenderClient:
			stats.ClientMessages = row.Count
		case models.SenderLawyer:
			stats.LawyerMessages = row.Count
		}
	}

	if stats.Total > 0 {
		var bounds struct {
			First time.Time
			Last  time.Time
		}
		err = s.db.WithContext(ctx).
			Model(&models.ConsultationMessage{}).
			Select("MIN(created_at) as first, MAX(created_at) as last").
			Where("session_id = ? AND sender_role <> ?", sessionID, models.SenderSystem).
			Scan(&bounds).Error
		if err != nil {
			return ThreadStats{}, err
		}
		stats.FirstMessageAt = &bounds.First
		stats.LastMessageAt = &bounds.Last
	}

	return stats, nil
}
