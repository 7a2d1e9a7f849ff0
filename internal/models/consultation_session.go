package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus enumerates the consultation lifecycle states.
type SessionStatus string

const (
	// SessionWaiting means the session exists but fewer than two
	// participants have joined.
	SessionWaiting SessionStatus = "waiting"
	// SessionActive means both participants joined and the scheduled window
	// is still open.
	SessionActive SessionStatus = "active"
	// SessionCompleted is terminal: a participant explicitly ended the
	// session.
	SessionCompleted SessionStatus = "completed"
	// SessionExpired is terminal: the window passed without an explicit end.
	SessionExpired SessionStatus = "expired"
)

// Terminal reports whether no further lifecycle transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionExpired
}

// EndReason records why a session was explicitly ended.
type EndReason string

const (
	EndReasonCompleted EndReason = "completed"
	EndReasonCancelled EndReason = "cancelled"
	EndReasonTimeout   EndReason = "timeout"
)

// ValidEndReason reports whether the supplied reason is one of the known
// termination reasons.
func ValidEndReason(reason EndReason) bool {
	switch reason {
	case EndReasonCompleted, EndReasonCancelled, EndReasonTimeout:
		return true
	}
	return false
}

// ConsultationSession is the live counterpart of a booked appointment: a
// short-lived, time-boxed communication channel between exactly two
// participants. Rows are created lazily on the first join attempt and are
// soft-deleted only, never removed.
//
// The persisted Status column exists for query performance; the source of
// truth is DeriveStatus, and readers correct the column lazily whenever the
// two disagree.
type ConsultationSession struct {
	BaseModel

	// Token is the opaque external identifier. The row ID never leaves the
	// process.
	Token string `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`

	AppointmentID string `gorm:"type:uuid;not null;uniqueIndex" json:"appointment_id"`
	ClientID      string `gorm:"type:uuid;not null;index" json:"client_id"`
	LawyerID      string `gorm:"type:uuid;not null;index" json:"lawyer_id"`

	Status SessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	ScheduledStartAt time.Time  `gorm:"not null;index" json:"scheduled_start_at"`
	ScheduledEndAt   time.Time  `gorm:"not null;index" json:"scheduled_end_at"`
	ActualStartAt    *time.Time `json:"actual_start_at,omitempty"`
	ActualEndAt      *time.Time `json:"actual_end_at,omitempty"`

	ClientJoinedAt *time.Time `json:"client_joined_at,omitempty"`
	LawyerJoinedAt *time.Time `json:"lawyer_joined_at,omitempty"`

	EndedByID          *string    `gorm:"type:uuid" json:"ended_by_id,omitempty"`
	EndReason          *EndReason `gorm:"type:varchar(20)" json:"end_reason,omitempty"`
	SatisfactionRating *int       `json:"satisfaction_rating,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
	Client      *User        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lawyer      *User        `gorm:"foreignKey:LawyerID" json:"lawyer,omitempty"`
}

// DeriveStatus computes the lifecycle state from the underlying facts. An
// explicit end always wins, then window expiry, then the two join marks.
func (s *ConsultationSession) DeriveStatus(now time.Time) SessionStatus {
	switch {
	case s.EndReason != nil:
		return SessionCompleted
	case now.After(s.ScheduledEndAt):
		return SessionExpired
	case s.ClientJoinedAt != nil && s.LawyerJoinedAt != nil:
		return SessionActive
	default:
		return SessionWaiting
	}
}

// BothJoined reports whether both participants recorded a join.
func (s *ConsultationSession) BothJoined() bool {
	return s.ClientJoinedAt != nil && s.LawyerJoinedAt != nil
}

// ScheduledDuration returns the booked length of the consultation.
func (s *ConsultationSession) ScheduledDuration() time.Duration {
	return s.ScheduledEndAt.Sub(s.ScheduledStartAt)
}

// ActualDuration returns the measured session length, or false when the
// session never ran from a mutual join to an explicit end.
func (s *ConsultationSession) ActualDuration() (time.Duration, bool) {
	if s.ActualStartAt == nil || s.ActualEndAt == nil {
		return 0, false
	}
	return s.ActualEndAt.Sub(*s.ActualStartAt), true
}
