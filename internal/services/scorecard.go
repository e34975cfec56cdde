package services

import (
	"errors"

	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScorecardService struct {
	db *gorm.DB
}

func NewScorecardService(db *gorm.DB) *ScorecardService {
	return &ScorecardService{db: db}
}

// GetByID loads a scorecard with its full question tree.
func (s *ScorecardService) GetByID(id string) (*models.Scorecard, error) {
	var scorecard models.Scorecard
	err := s.db.
		Preload("Groups", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Groups.Sections", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Groups.Sections.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		First(&scorecard, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, codedError(CodeRecordNotFound, "scorecard not found").
				WithDetail("scorecardId", id)
		}
		return nil, err
	}
	return &scorecard, nil
}

type ScorecardListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Type     string `form:"type"`
}

type ScorecardListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.Scorecard `json:"items"`
}

// List returns paginated scorecards without their question trees.
func (s *ScorecardService) List(req *ScorecardListRequest) (*ScorecardListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Scorecard{})
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}

	var total int64
	query.Count(&total)

	var scorecards []models.Scorecard
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&scorecards).Error; err != nil {
		return nil, err
	}

	return &ScorecardListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    scorecards,
	}, nil
}

type CreateScorecardRequest struct {
	Name                string                 `json:"name" binding:"required"`
	Type                string                 `json:"type" binding:"required"`
	MinScore            float64                `json:"min_score"`
	MaxScore            float64                `json:"max_score" binding:"required"`
	MinimumPassingScore float64                `json:"minimum_passing_score"`
	Groups              []CreateGroupRequest   `json:"groups" binding:"required,min=1"`
}

type CreateGroupRequest struct {
	Name     string                 `json:"name"`
	Weight   float64                `json:"weight" binding:"required"`
	Sections []CreateSectionRequest `json:"sections" binding:"required,min=1"`
}

type CreateSectionRequest struct {
	Name      string                  `json:"name"`
	Weight    float64                 `json:"weight" binding:"required"`
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1"`
}

type CreateQuestionRequest struct {
	Description string  `json:"description"`
	Type        string  `json:"type" binding:"required,oneof=SCALE YES_NO"`
	Weight      float64 `json:"weight" binding:"required"`
	ScaleMin    float64 `json:"scale_min"`
	ScaleMax    float64 `json:"scale_max"`
}

// Create persists a scorecard with its weighted question tree.
func (s *ScorecardService) Create(req *CreateScorecardRequest) (*models.Scorecard, error) {
	if req.MaxScore <= req.MinScore {
		return nil, response.NewValidation("BAD_REQUEST", "max_score must exceed min_score")
	}

	scorecard := &models.Scorecard{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Type:                req.Type,
		MinScore:            req.MinScore,
		MaxScore:            req.MaxScore,
		MinimumPassingScore: req.MinimumPassingScore,
	}

	for gi, group := range req.Groups {
		g := models.ScorecardGroup{
			ID:          uuid.NewString(),
			ScorecardID: scorecard.ID,
			Name:        group.Name,
			Weight:      group.Weight,
			SortOrder:   gi,
		}
		for si, section := range group.Sections {
			sec := models.ScorecardSection{
				ID:        uuid.NewString(),
				GroupID:   g.ID,
				Name:      section.Name,
				Weight:    section.Weight,
				SortOrder: si,
			}
			for qi, question := range section.Questions {
				scaleMin, scaleMax := question.ScaleMin, question.ScaleMax
				if question.Type == models.QuestionTypeScale && scaleMax <= scaleMin {
					return nil, response.NewValidation("BAD_REQUEST", "scale questions need scale_max > scale_min")
				}
				sec.Questions = append(sec.Questions, models.ScorecardQuestion{
					ID:          uuid.NewString(),
					SectionID:   sec.ID,
					Description: question.Description,
					Type:        question.Type,
					Weight:      question.Weight,
					ScaleMin:    scaleMin,
					ScaleMax:    scaleMax,
					SortOrder:   qi,
				})
			}
			g.Sections = append(g.Sections, sec)
		}
		scorecard.Groups = append(scorecard.Groups, g)
	}

	if err := s.db.Create(scorecard).Error; err != nil {
		return nil, err
	}
	return scorecard, nil
}
