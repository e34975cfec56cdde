package models

import (
	"time"
)

// AuditEntry records exactly what changed in a review or review item
// mutation and by whom. Append-only; never updated or soft-deleted.
type AuditEntry struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ActorMemberID int64     `gorm:"index;not null" json:"actor_member_id"`
	ReviewID      string    `gorm:"size:36;index;not null" json:"review_id"`
	SubmissionID  string    `gorm:"size:36;index" json:"submission_id"`
	ChallengeID   string    `gorm:"size:36;index" json:"challenge_id"`
	Description   string    `gorm:"type:text" json:"description"` // one "field: old -> new" line per change
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
