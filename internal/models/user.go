package models

// UserRole distinguishes the two participant kinds the platform serves.
type UserRole string

const (
	// RoleClient identifies a person seeking legal advice.
	RoleClient UserRole = "client"
	// RoleLawyer identifies a verified legal professional.
	RoleLawyer UserRole = "lawyer"
)

// User is a read-only snapshot of an identity managed by the external
// accounts subsystem. The consultation core never mutates these rows; they
// exist so sessions and notifications can render display names without a
// remote lookup.
type User struct {
	BaseModel

	DisplayName string   `gorm:"not null" json:"display_name"`
	Email       string   `gorm:"uniqueIndex;not null" json:"email"`
	Role        UserRole `gorm:"type:varchar(20);not null;index" json:"role"`
}
