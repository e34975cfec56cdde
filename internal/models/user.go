package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a local operator account. MemberID links the account to the
// platform member directory; challenge-level roles (reviewer, copilot,
// submitter) are never stored here; they come from the resource service
// per challenge.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	MemberID  int64          `gorm:"uniqueIndex;not null" json:"member_id"`
	Handle    string         `gorm:"uniqueIndex;size:100;not null" json:"handle"`
	Password  string         `gorm:"size:255" json:"-"`
	Email     string         `gorm:"size:255" json:"email"`
	Role      string         `gorm:"size:50;default:member" json:"role"` // admin, member
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RoleAdmin bypasses every ownership and phase gate in the engine.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
