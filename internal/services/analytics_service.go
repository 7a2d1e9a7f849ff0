package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/legalbridge/legalbridge/internal/models"
)

// AnalyticsService computes the one-time roll-up of a terminated session.
// The write is an upsert keyed on the session id, so a concurrent or
// repeated trigger overwrites instead of duplicating.
type AnalyticsService struct {
	db      *gorm.DB
	threads *MessageThreadService
}

// NewAnalyticsService constructs the aggregator.
func NewAnalyticsService(db *gorm.DB, threads *MessageThreadService) (*AnalyticsService, error) {
	if db == nil {
		return nil, errors.New("analytics service: db is required")
	}
	if threads == nil {
		return nil, errors.New("analytics service: message thread service is required")
	}
	return &AnalyticsService{db: db, threads: threads}, nil
}

// Compute derives and persists the summary record for the session. Safe to
// re-invoke: the session key makes the write last-writer-wins.
func (s *AnalyticsService) Compute(ctx context.Context, session *models.ConsultationSession) (*models.ConsultationAnalytics, error) {
	if s == nil {
		return nil, errors.New("analytics service: service not initialised")
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	ctx = ensureContext(ctx)

	stats, err := s.threads.Stats(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	scheduledMinutes := int(session.ScheduledDuration().Minutes())
	durationMinutes := scheduledMinutes
	if actual, ok := session.ActualDuration(); ok {
		durationMinutes = int(actual.Minutes())
	}

	completed := session.EndReason != nil && *session.EndReason == models.EndReasonCompleted

	record := models.ConsultationAnalytics{
		SessionID:             session.ID,
		DurationMinutes:       durationMinutes,
		MessageCount:          stats.Total,
		ClientMessageCount:    stats.ClientMessages,
		LawyerMessageCount:    stats.LawyerMessages,
		FirstMessageAt:        stats.FirstMessageAt,
		LastMessageAt:         stats.LastMessageAt,
		CompletedSuccessfully: completed,
		SatisfactionRating:    session.SatisfactionRating,
		EngagementScore: EngagementScore(ScoreInputs{
			MessageCount:          stats.Total,
			DurationMinutes:       durationMinutes,
			ScheduledMinutes:      scheduledMinutes,
			CompletedSuccessfully: completed,
			SatisfactionRating:    session.SatisfactionRating,
		}),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"duration_minutes",
			"message_count",
			"client_message_count",
			"lawyer_message_count",
			"first_message_at",
			"last_message_at",
			"completed_successfully",
			"satisfaction_rating",
			"engagement_score",
			"updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Get returns the stored roll-up for a session.
func (s *AnalyticsService) Get(ctx context.Context, sessionID string) (*models.ConsultationAnalytics, error) {
	if s == nil {
		return nil, errors.New("analytics service: service not initialised")
	}
	ctx = ensureContext(ctx)

	var record models.ConsultationAnalytics
	if err := s.db.WithContext(ctx).
		First(&record, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ScoreInputs are the facts the engagement diagnostic is derived from.
type ScoreInputs struct {
	MessageCount          int
	DurationMinutes       int
	ScheduledMinutes      int
	CompletedSuccessfully bool
	SatisfactionRating    *int
}

// EngagementScore computes the 0-100 diagnostic: a message-volume term
// (2 points per message, max 40), a duration term (share of the scheduled
// window, max 30), a completion bonus (20) and an optional satisfaction term
// (rating/5 of 10). The sum is floored to an integer and capped at 100.
func EngagementScore(in ScoreInputs) int {
	score := 0.0

	volume := float64(in.MessageCount) * 2
	if volume > 40 {
		volume = 40
	}
	score += volume

	if in.ScheduledMinutes > 0 {
		duration := float64(in.DurationMinutes) / float64(in.ScheduledMinutes) * 30
		if duration > 30 {
			duration = 30
		}
		score += duration
	}

	if in.CompletedSuccessfully {
		score += 20
	}

	if in.SatisfactionRating != nil {
		score += float64(*in.SatisfactionRating) / 5 * 10
	}

	if score > 100 {
		score = 100
	}
	return int(score)
}
