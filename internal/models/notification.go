package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notice produced by the consultation bridge for
// the counterpart participant. Delivery is best-effort; rows exist so a
// participant who was offline still sees what happened.
type Notification struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type     string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Title    string         `gorm:"not null" json:"title"`
	Message  string         `gorm:"type:text" json:"message"`
	Severity string         `gorm:"type:varchar(16);not null;default:'info'" json:"severity"`
	Metadata datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
