package models

import "time"

// AppointmentStatus tracks the booking lifecycle owned by the scheduling
// subsystem. The consultation core only reads appointments.
type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is the external booking record a consultation session is
// derived from. It names the two participants and the scheduled window; the
// session core reads it exactly once, at session creation.
type Appointment struct {
	BaseModel

	ClientID        string            `gorm:"type:uuid;not null;index" json:"client_id"`
	LawyerID        string            `gorm:"type:uuid;not null;index" json:"lawyer_id"`
	ScheduledAt     time.Time         `gorm:"not null;index" json:"scheduled_at"`
	DurationMinutes int               `gorm:"not null" json:"duration_minutes"`
	Topic           string            `gorm:"type:text" json:"topic,omitempty"`
	Status          AppointmentStatus `gorm:"type:varchar(20);not null;default:'booked'" json:"status"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lawyer *User `gorm:"foreignKey:LawyerID" json:"lawyer,omitempty"`
}

// ScheduledEnd returns the end of the booked window.
func (a *Appointment) ScheduledEnd() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
