package models

import (
	"time"

	"gorm.io/gorm"
)

// Scorecard type drives which challenge phase a review of this scorecard
// attaches to, and which resource roles may fill it in.
const (
	ScorecardTypeReview              = "REVIEW"
	ScorecardTypeIterativeReview     = "ITERATIVE_REVIEW"
	ScorecardTypeScreening           = "SCREENING"
	ScorecardTypeCheckpointScreening = "CHECKPOINT_SCREENING"
	ScorecardTypeCheckpointReview    = "CHECKPOINT_REVIEW"
	ScorecardTypeApproval            = "APPROVAL"
)

// Question answer types. Scale answers interpolate within the question's
// [ScaleMin, ScaleMax]; yes/no answers map to the bounds directly.
const (
	QuestionTypeScale = "SCALE"
	QuestionTypeYesNo = "YES_NO"
)

// Scorecard is a weighted tree of grading questions:
// Scorecard -> Groups -> Sections -> Questions.
type Scorecard struct {
	ID                  string           `gorm:"primaryKey;size:36" json:"id"`
	Name                string           `gorm:"size:200;not null" json:"name"`
	Type                string           `gorm:"size:50;not null;index" json:"type"`
	MinScore            float64          `json:"min_score"`
	MaxScore            float64          `json:"max_score"`
	MinimumPassingScore float64          `json:"minimum_passing_score"`
	Groups              []ScorecardGroup `gorm:"foreignKey:ScorecardID" json:"groups"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           gorm.DeletedAt   `gorm:"index" json:"-"`
}

type ScorecardGroup struct {
	ID          string             `gorm:"primaryKey;size:36" json:"id"`
	ScorecardID string             `gorm:"size:36;index;not null" json:"scorecard_id"`
	Name        string             `gorm:"size:200" json:"name"`
	Weight      float64            `json:"weight"`
	SortOrder   int                `json:"sort_order"`
	Sections    []ScorecardSection `gorm:"foreignKey:GroupID" json:"sections"`
}

type ScorecardSection struct {
	ID        string              `gorm:"primaryKey;size:36" json:"id"`
	GroupID   string              `gorm:"size:36;index;not null" json:"group_id"`
	Name      string              `gorm:"size:200" json:"name"`
	Weight    float64             `json:"weight"`
	SortOrder int                 `json:"sort_order"`
	Questions []ScorecardQuestion `gorm:"foreignKey:SectionID" json:"questions"`
}

type ScorecardQuestion struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	SectionID   string  `gorm:"size:36;index;not null" json:"section_id"`
	Description string  `gorm:"type:text" json:"description"`
	Type        string  `gorm:"size:20;not null" json:"type"` // SCALE, YES_NO
	Weight      float64 `json:"weight"`
	ScaleMin    float64 `json:"scale_min"`
	ScaleMax    float64 `json:"scale_max"`
	SortOrder   int     `json:"sort_order"`
}

func (Scorecard) TableName() string         { return "scorecards" }
func (ScorecardGroup) TableName() string    { return "scorecard_groups" }
func (ScorecardSection) TableName() string  { return "scorecard_sections" }
func (ScorecardQuestion) TableName() string { return "scorecard_questions" }

// Questions flattens the scorecard tree in group/section/question order.
func (s *Scorecard) Questions() []ScorecardQuestion {
	var questions []ScorecardQuestion
	for _, g := range s.Groups {
		for _, sec := range g.Sections {
			questions = append(questions, sec.Questions...)
		}
	}
	return questions
}

// HasQuestion reports whether the given question id belongs to this scorecard.
func (s *Scorecard) HasQuestion(questionID string) bool {
	for _, g := range s.Groups {
		for _, sec := range g.Sections {
			for _, q := range sec.Questions {
				if q.ID == questionID {
					return true
				}
			}
		}
	}
	return false
}
