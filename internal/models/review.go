package models

import (
	"time"

	"gorm.io/gorm"
)

// Review statuses.
const (
	ReviewStatusPending    = "PENDING"
	ReviewStatusInProgress = "IN_PROGRESS"
	ReviewStatusCompleted  = "COMPLETED"
)

// Review is one reviewer's graded pass over one submission against one
// scorecard. One review exists per (submission, scorecard, resource);
// the service enforces this on create rather than via a unique index so
// that soft-deleted rows do not block recreation. ResourceID, ScorecardID
// and SubmissionID are immutable after creation; scores are derived from
// items unless explicitly overridden by an admin.
type Review struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID string         `gorm:"size:36;index;not null" json:"submission_id"`
	ChallengeID  string         `gorm:"size:36;index;not null" json:"challenge_id"`
	ScorecardID  string         `gorm:"size:36;index;not null" json:"scorecard_id"`
	TypeID       string         `gorm:"size:36" json:"type_id"`
	ResourceID   string         `gorm:"size:36;index;not null" json:"resource_id"`
	PhaseID      string         `gorm:"size:36" json:"phase_id"`
	Status       string         `gorm:"size:50;default:PENDING;index" json:"status"`
	Committed    bool           `gorm:"default:false" json:"committed"`
	InitialScore *float64       `json:"initial_score"`
	FinalScore   *float64       `json:"final_score"`
	ReviewDate   *time.Time     `json:"review_date"`
	Metadata     string         `gorm:"type:text" json:"metadata,omitempty"` // opaque JSON
	CreatedBy    int64          `json:"created_by"`
	UpdatedBy    int64          `json:"updated_by"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Items []ReviewItem `gorm:"foreignKey:ReviewID" json:"review_items"`

	// Identity enrichment, joined in from the external directories on read.
	ReviewerHandle    string `gorm:"-" json:"reviewer_handle,omitempty"`
	ReviewerMaxRating *int   `gorm:"-" json:"reviewer_max_rating,omitempty"`
}

// ReviewItem is one answered scorecard question within a review. The
// question must belong to the review's own scorecard.
type ReviewItem struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	ReviewID            string         `gorm:"size:36;index;not null" json:"review_id"`
	ScorecardQuestionID string         `gorm:"size:36;index;not null" json:"scorecard_question_id"`
	InitialAnswer       string         `gorm:"size:50" json:"initial_answer"`
	FinalAnswer         string         `gorm:"size:50" json:"final_answer"`
	ManagerComment      string         `gorm:"type:text" json:"manager_comment,omitempty"` // copilot-only field
	SortOrder           int            `json:"sort_order"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`

	Comments []ReviewItemComment `gorm:"foreignKey:ReviewItemID" json:"comments"`
}

// Comment thread types on a review item.
const (
	CommentTypeComment        = "COMMENT"
	CommentTypeAppeal         = "APPEAL"
	CommentTypeAppealResponse = "APPEAL_RESPONSE"
)

// ReviewItemComment is a commentary or appeal entry attached to a review
// item. ResourceID identifies the author's assignment on the challenge.
type ReviewItemComment struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	ReviewItemID string         `gorm:"size:36;index;not null" json:"review_item_id"`
	ResourceID   string         `gorm:"size:36;not null" json:"resource_id"`
	Type         string         `gorm:"size:30;default:COMMENT" json:"type"`
	Content      string         `gorm:"type:text" json:"content"`
	SortOrder    int            `json:"sort_order"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Review) TableName() string            { return "reviews" }
func (ReviewItem) TableName() string        { return "review_items" }
func (ReviewItemComment) TableName() string { return "review_item_comments" }

// ItemByQuestion returns the item answering the given scorecard question,
// or nil. One item exists per (review, question) pair.
func (r *Review) ItemByQuestion(questionID string) *ReviewItem {
	for i := range r.Items {
		if r.Items[i].ScorecardQuestionID == questionID {
			return &r.Items[i]
		}
	}
	return nil
}
