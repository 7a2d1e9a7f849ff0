package models

import "time"

// ConsultationAnalytics is the one-time roll-up computed when a session
// reaches a terminal state. At most one row exists per session; recomputation
// upserts on SessionID instead of inserting a duplicate.
type ConsultationAnalytics struct {
	BaseModel

	SessionID string `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`

	DurationMinutes int `gorm:"not null" json:"duration_minutes"`

	// Counts cover human messages only; system notices never contribute to
	// engagement figures.
	MessageCount       int `gorm:"not null;default:0" json:"message_count"`
	ClientMessageCount int `gorm:"not null;default:0" json:"client_message_count"`
	LawyerMessageCount int `gorm:"not null;default:0" json:"lawyer_message_count"`

	FirstMessageAt *time.Time `json:"first_message_at,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`

	CompletedSuccessfully bool `gorm:"not null;default:false" json:"completed_successfully"`
	SatisfactionRating    *int `json:"satisfaction_rating,omitempty"`

	// EngagementScore is a derived 0-100 diagnostic, not a business truth.
	EngagementScore int `gorm:"not null;default:0" json:"engagement_score"`

	Session *ConsultationSession `gorm:"foreignKey:SessionID;references:ID" json:"session,omitempty"`
}
