package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/monitoring"
	"github.com/legalbridge/legalbridge/pkg/logger"
)

// joinWindowLead is how long before the scheduled start participants may
// enter the room. The window is inclusive at both ends:
// [scheduled_start - lead, scheduled_end].
const joinWindowLead = time.Minute

// SessionSnapshot is the caller-facing view of a session's lifecycle state,
// computed against the service clock at the moment of the request.
type SessionSnapshot struct {
	Token                string                `json:"token"`
	Status               models.SessionStatus `json:"status"`
	ScheduledStartAt     time.Time            `json:"scheduled_start"`
	ScheduledEndAt       time.Time            `json:"scheduled_end"`
	ActualStartAt        *time.Time           `json:"actual_start,omitempty"`
	ActualEndAt          *time.Time           `json:"actual_end,omitempty"`
	ClientJoinedAt       *time.Time           `json:"client_joined_at,omitempty"`
	LawyerJoinedAt       *time.Time           `json:"lawyer_joined_at,omitempty"`
	EndReason            *models.EndReason    `json:"end_reason,omitempty"`
	CanJoin              bool                 `json:"can_join"`
	MinutesUntilJoin     int                  `json:"minutes_until_join"`
	HasExpired           bool                 `json:"has_expired"`
	TimeRemainingMinutes int                  `json:"time_remaining_minutes"`
}

// SessionLifecycleService owns every ConsultationSession mutation: lazy
// creation from an appointment, join-window enforcement, the two-sided join,
// the exactly-once end and the lazy expiry correction. Status is always the
// §derivation of the underlying facts; the persisted column is corrected
// whenever it is observed stale.
type SessionLifecycleService struct {
	db        *gorm.DB
	threads   *MessageThreadService
	analytics *AnalyticsService
	bridge    NotificationBridge
	timeNow   func() time.Time
	log       *zap.Logger
}

// SessionLifecycleOption customises service dependencies.
type SessionLifecycleOption func(*SessionLifecycleService)

// WithNotificationBridge wires the fire-and-forget counterpart push.
func WithNotificationBridge(bridge NotificationBridge) SessionLifecycleOption {
	return func(s *SessionLifecycleService) {
		s.bridge = bridge
	}
}

// WithLifecycleClock overrides the clock used for window checks (test helper).
func WithLifecycleClock(clock func() time.Time) SessionLifecycleOption {
	return func(s *SessionLifecycleService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// NewSessionLifecycleService constructs the lifecycle service once dependencies are supplied.
func NewSessionLifecycleService(db *gorm.DB, threads *MessageThreadService, analytics *AnalyticsService, opts ...SessionLifecycleOption) (*SessionLifecycleService, error) {
	if db == nil {
		return nil, errors.New("session lifecycle service: db is required")
	}
	if threads == nil {
		return nil, errors.New("session lifecycle service: message thread service is required")
	}
	if analytics == nil {
		return nil, errors.New("session lifecycle service: analytics service is required")
	}

	svc := &SessionLifecycleService{
		db:        db,
		threads:   threads,
		analytics: analytics,
		timeNow:   time.Now,
		log:       logger.WithModule("session-lifecycle"),
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CreateOrGetSession derives the session for an appointment, creating it on
// first use. Concurrent first-join attempts are safe: the unique index on
// the appointment reference plus ON CONFLICT DO NOTHING guarantees a single
// row, and the follow-up fetch returns whichever insert won.
func (s *SessionLifecycleService) CreateOrGetSession(ctx context.Context, appointmentID string) (*models.ConsultationSession, error) {
	if s == nil {
		return nil, errors.New("session lifecycle service: service not initialised")
	}
	ctx = ensureContext(ctx)

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, ErrAppointmentNotFound
	}

	var appointment models.Appointment
	if err := s.db.WithContext(ctx).
		First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if appointment.Status == models.AppointmentCancelled {
		return nil, ErrAppointmentCancelled
	}
	if appointment.DurationMinutes <= 0 {
		return nil, fmt.Errorf("session lifecycle service: appointment %s has non-positive duration", appointment.ID)
	}

	candidate := models.ConsultationSession{
		Token:            uuid.NewString(),
		AppointmentID:    appointment.ID,
		ClientID:         appointment.ClientID,
		LawyerID:         appointment.LawyerID,
		Status:           models.SessionWaiting,
		ScheduledStartAt: appointment.ScheduledAt,
		ScheduledEndAt:   appointment.ScheduledEnd(),
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "appointment_id"}},
			DoNothing: true,
		}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}

	return s.loadSession(ctx, "appointment_id = ?", appointment.ID)
}

// GetByToken resolves a non-deleted session by its opaque token, applying
// the lazy expiry correction before returning it to any caller.
func (s *SessionLifecycleService) GetByToken(ctx context.Context, token string) (*models.ConsultationSession, error) {
	if s == nil {
		return nil, errors.New("session lifecycle service: service not initialised")
	}
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	return s.loadSession(ctx, "token = ?", token)
}

func (s *SessionLifecycleService) loadSession(ctx context.Context, query string, args ...any) (*models.ConsultationSession, error) {
	var session models.ConsultationSession
	if err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Lawyer").
		First(&session, append([]any{query}, args...)...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.applyExpiryCorrection(ctx, &session)
	return &session, nil
}

// applyExpiryCorrection flips a stale waiting/active row to expired once the
// window has passed. Purely a read-side repair: it never reports an error
// and never sets an end reason, keeping the passive timeout path distinct
// from an explicit end.
func (s *SessionLifecycleService) applyExpiryCorrection(ctx context.Context, session *models.ConsultationSession) {
	if session.Status.Terminal() {
		return
	}

	now := s.timeNow()
	if session.DeriveStatus(now) != models.SessionExpired {
		return
	}

	res := s.db.WithContext(ctx).
		Model(&models.ConsultationSession{}).
		Where("id = ? AND end_reason IS NULL AND status IN ?",
			session.ID, []models.SessionStatus{models.SessionWaiting, models.SessionActive}).
		Update("status", models.SessionExpired)
	if res.Error != nil {
		s.log.Warn("expiry correction failed",
			zap.String("session_id", session.ID),
			zap.Error(res.Error),
		)
		return
	}

	if res.RowsAffected > 0 {
		if session.Status == models.SessionActive {
			monitoring.AdjustActiveConsultations(-1)
		}
		session.Status = models.SessionExpired
		monitoring.RecordExpiryCorrection()
		monitoring.RecordConsultationEnded(string(models.EndReasonTimeout), 0)
		return
	}

	// Another writer transitioned the row first; pick up its result.
	_ = s.db.WithContext(ctx).First(session, "id = ?", session.ID).Error
}

// ResolveRole reports the capability of the identity within the session.
func (s *SessionLifecycleService) ResolveRole(session *models.ConsultationSession, identity string) ParticipantRole {
	if session == nil {
		return ParticipantNone
	}
	return resolveParticipantRole(session, strings.TrimSpace(identity))
}

// CanJoin reports whether the actor may enter the room at the given instant.
// When the answer is no purely for timing reasons, the second return value
// carries the whole minutes until the window opens (zero once it is open or
// when a non-timing condition fails).
func (s *SessionLifecycleService) CanJoin(session *models.ConsultationSession, identity string, now time.Time) (bool, int) {
	if s == nil || session == nil {
		return false, 0
	}
	if resolveParticipantRole(session, strings.TrimSpace(identity)) == ParticipantNone {
		return false, 0
	}
	if session.DeriveStatus(now).Terminal() {
		return false, 0
	}

	opensAt := session.ScheduledStartAt.Add(-joinWindowLead)
	if now.Before(opensAt) {
		return false, wholeMinutesUntil(now, opensAt)
	}

	return true, 0
}

// Join records the actor's entry into the session. Idempotent per role: a
// repeated join neither moves the recorded timestamp nor emits a second
// system message. The underlying guard is a conditional single-row update
// (set joined_at only while it is NULL), so two racing joins for the same
// role resolve to one winner and one no-op.
func (s *SessionLifecycleService) Join(ctx context.Context, token, identity string) (*models.ConsultationSession, error) {
	if s == nil {
		return nil, errors.New("session lifecycle service: service not initialised")
	}
	ctx = ensureContext(ctx)

	session, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	identity = strings.TrimSpace(identity)
	role := resolveParticipantRole(session, identity)
	if role == ParticipantNone {
		return nil, ErrNotParticipant
	}

	now := s.timeNow()
	if session.Status.Terminal() || session.DeriveStatus(now).Terminal() {
		return nil, ErrInvalidSessionState
	}

	if ok, minutes := s.CanJoin(session, identity, now); !ok {
		return nil, &JoinWindowError{MinutesUntilJoin: minutes}
	}

	column := "client_joined_at"
	if role == ParticipantLawyer {
		column = "lawyer_joined_at"
	}

	res := s.db.WithContext(ctx).
		Model(&models.ConsultationSession{}).
		Where("id = ? AND "+column+" IS NULL AND end_reason IS NULL", session.ID).
		Update(column, now)
	if res.Error != nil {
		return nil, res.Error
	}
	firstJoin := res.RowsAffected == 1

	if err := s.refresh(ctx, session); err != nil {
		return nil, err
	}

	if !firstJoin {
		// Either this role already joined (no-op by design) or the session
		// was ended between the load and the update.
		if session.EndReason != nil {
			return nil, ErrInvalidSessionState
		}
		return session, nil
	}

	if session.BothJoined() && session.ActualStartAt == nil {
		if err := s.db.WithContext(ctx).
			Model(&models.ConsultationSession{}).
			Where("id = ? AND actual_start_at IS NULL", session.ID).
			Update("actual_start_at", now).Error; err != nil {
			return nil, err
		}
		if err := s.refresh(ctx, session); err != nil {
			return nil, err
		}
	}

	if derived := session.DeriveStatus(now); derived != session.Status {
		if err := s.db.WithContext(ctx).
			Model(&models.ConsultationSession{}).
			Where("id = ? AND end_reason IS NULL", session.ID).
			Update("status", derived).Error; err != nil {
			return nil, err
		}
		if derived == models.SessionActive && session.Status == models.SessionWaiting {
			monitoring.AdjustActiveConsultations(1)
		}
		session.Status = derived
	}

	name := s.participantName(session, role)
	if _, err := s.threads.AppendSystem(ctx, session.ID, name+" joined the consultation"); err != nil {
		// The join timestamp is already durable; the notice is best effort,
		// same as on the end path.
		s.log.Warn("join notice append failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	if s.bridge != nil {
		event := ParticipantJoinedEvent{
			SessionToken:      session.Token,
			JoinerID:          identity,
			JoinerDisplayName: name,
			Role:              role,
			CounterpartID:     counterpartID(session, identity),
			JoinedAt:          now,
		}
		notifyBestEffort("participant_joined", func() error {
			return s.bridge.ParticipantJoined(ctx, event)
		})
	}

	return session, nil
}

// EndSession terminates the session exactly once. The transition is a
// conditional single-row update predicated on end_reason still being NULL;
// the loser of a concurrent end (or an end against an already-terminal
// session) gets ErrInvalidSessionState rather than a silent no-op. The
// analytics roll-up runs synchronously before the call returns.
func (s *SessionLifecycleService) EndSession(ctx context.Context, token, identity string, reason models.EndReason) (*models.ConsultationSession, error) {
	if s == nil {
		return nil, errors.New("session lifecycle service: service not initialised")
	}
	ctx = ensureContext(ctx)

	if reason == "" {
		reason = models.EndReasonCompleted
	}
	if !models.ValidEndReason(reason) {
		return nil, ErrInvalidEndReason
	}

	session, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	identity = strings.TrimSpace(identity)
	role := resolveParticipantRole(session, identity)
	if role == ParticipantNone {
		return nil, ErrNotParticipant
	}

	now := s.timeNow()
	previousStatus := session.Status

	res := s.db.WithContext(ctx).
		Model(&models.ConsultationSession{}).
		Where("id = ? AND end_reason IS NULL AND status IN ?",
			session.ID, []models.SessionStatus{models.SessionWaiting, models.SessionActive}).
		Updates(map[string]any{
			"status":        models.SessionCompleted,
			"end_reason":    reason,
			"ended_by_id":   identity,
			"actual_end_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidSessionState
	}

	if err := s.refresh(ctx, session); err != nil {
		return nil, err
	}

	if previousStatus == models.SessionActive {
		monitoring.AdjustActiveConsultations(-1)
	}
	if actual, ok := session.ActualDuration(); ok {
		monitoring.RecordConsultationEnded(string(reason), actual)
	} else {
		monitoring.RecordConsultationEnded(string(reason), 0)
	}

	name := s.participantName(session, role)
	if _, err := s.threads.AppendSystem(ctx, session.ID, name+" ended the consultation"); err != nil {
		// The terminal transition is already durable; a missing notice must
		// not block the roll-up.
		s.log.Warn("end notice append failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	record, err := s.analytics.Compute(ctx, session)
	if err != nil {
		return nil, err
	}

	if s.bridge != nil {
		event := SessionEndedEvent{
			SessionToken:    session.Token,
			Reason:          reason,
			DurationMinutes: record.DurationMinutes,
			EndedByID:       identity,
			CounterpartID:   counterpartID(session, identity),
		}
		notifyBestEffort("session_ended", func() error {
			return s.bridge.SessionEnded(ctx, event)
		})
	}

	return session, nil
}

// RateSession stores the client's satisfaction rating after the session
// ended and re-runs the analytics roll-up. The recomputation upserts on the
// session key, so the summary is overwritten in place.
func (s *SessionLifecycleService) RateSession(ctx context.Context, token, identity string, rating int) (*models.ConsultationSession, error) {
	if s == nil {
		return nil, errors.New("session lifecycle service: service not initialised")
	}
	ctx = ensureContext(ctx)

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	session, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if resolveParticipantRole(session, strings.TrimSpace(identity)) != ParticipantClient {
		return nil, ErrNotParticipant
	}
	if !session.Status.Terminal() {
		return nil, ErrInvalidSessionState
	}

	if err := s.db.WithContext(ctx).
		Model(&models.ConsultationSession{}).
		Where("id = ?", session.ID).
		Update("satisfaction_rating", rating).Error; err != nil {
		return nil, err
	}
	session.SatisfactionRating = &rating

	if _, err := s.analytics.Compute(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Snapshot renders the caller-facing lifecycle view for the identity.
func (s *SessionLifecycleService) Snapshot(session *models.ConsultationSession, identity string) SessionSnapshot {
	now := s.timeNow()
	canJoin, minutes := s.CanJoin(session, identity, now)

	return SessionSnapshot{
		Token:                session.Token,
		Status:               session.Status,
		ScheduledStartAt:     session.ScheduledStartAt,
		ScheduledEndAt:       session.ScheduledEndAt,
		ActualStartAt:        session.ActualStartAt,
		ActualEndAt:          session.ActualEndAt,
		ClientJoinedAt:       session.ClientJoinedAt,
		LawyerJoinedAt:       session.LawyerJoinedAt,
		EndReason:            session.EndReason,
		CanJoin:              canJoin,
		MinutesUntilJoin:     minutes,
		HasExpired:           session.DeriveStatus(now) == models.SessionExpired,
		TimeRemainingMinutes: wholeMinutesRemaining(now, session.ScheduledEndAt),
	}
}

func (s *SessionLifecycleService) refresh(ctx context.Context, session *models.ConsultationSession) error {
	client, lawyer := session.Client, session.Lawyer
	if err := s.db.WithContext(ctx).First(session, "id = ?", session.ID).Error; err != nil {
		return err
	}
	session.Client, session.Lawyer = client, lawyer
	return nil
}

func (s *SessionLifecycleService) participantName(session *models.ConsultationSession, role ParticipantRole) string {
	return senderDisplayName(session, role)
}
