package models

import (
	"time"

	"gorm.io/gorm"
)

// SenderRole identifies who authored a thread entry.
type SenderRole string

const (
	SenderClient SenderRole = "client"
	SenderLawyer SenderRole = "lawyer"
	// SenderSystem marks synthetic lifecycle notices (join/end). System
	// entries are born read.
	SenderSystem SenderRole = "system"
)

// MessageType distinguishes the thread entry payloads.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// ConsultationMessage is an append-only thread entry belonging to exactly
// one session. Content is immutable once written; only the read receipt
// (IsRead/ReadAt) flips, exactly once, false to true.
//
// The primary key is an auto-incrementing integer rather than a UUID so the
// thread has a total, stable order: chronological by CreatedAt with the row
// id breaking ties in insertion sequence.
type ConsultationMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionID  string      `gorm:"type:uuid;not null;index" json:"session_id"`
	SenderID   *string     `gorm:"type:uuid;index" json:"sender_id,omitempty"`
	SenderRole SenderRole  `gorm:"type:varchar(20);not null;index" json:"sender_role"`
	Type       MessageType `gorm:"type:varchar(20);not null" json:"type"`
	Content    string      `gorm:"type:text" json:"content"`

	FilePath string `gorm:"type:text" json:"file_path,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileMime string `gorm:"type:varchar(128)" json:"file_mime,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Session *ConsultationSession `gorm:"foreignKey:SessionID;references:ID" json:"session,omitempty"`
	Sender  *User                `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// AuthoredBy reports whether the message was written by the supplied user.
// System messages belong to nobody.
func (m *ConsultationMessage) AuthoredBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// HasFile reports whether the entry carries an attachment reference.
func (m *ConsultationMessage) HasFile() bool {
	return m.FilePath != "" || m.FileName != ""
}
