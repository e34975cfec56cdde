package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// FieldChange is one structured entry of a mutation diff. Serialized to
// "field: old -> new" text only at the persistence boundary.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, c.Old, c.New)
}

// DiffReviews computes the field-level diff between two review snapshots:
// top-level scalar fields plus each item's initialAnswer/finalAnswer/
// managerComment keyed by scorecardQuestionId.
func DiffReviews(before, after *models.Review) []FieldChange {
	var changes []FieldChange

	appendChange := func(field, oldV, newV string) {
		if oldV != newV {
			changes = append(changes, FieldChange{Field: field, Old: oldV, New: newV})
		}
	}

	appendChange("status", before.Status, after.Status)
	appendChange("committed", formatBool(before.Committed), formatBool(after.Committed))
	appendChange("phaseId", before.PhaseID, after.PhaseID)
	appendChange("typeId", before.TypeID, after.TypeID)
	appendChange("metadata", before.Metadata, after.Metadata)
	appendChange("initialScore", formatScore(before.InitialScore), formatScore(after.InitialScore))
	appendChange("finalScore", formatScore(before.FinalScore), formatScore(after.FinalScore))
	appendChange("reviewDate", formatTime(before.ReviewDate), formatTime(after.ReviewDate))

	changes = append(changes, diffItems(before.Items, after.Items)...)
	return changes
}

// diffItems diffs item collections keyed by scorecard question id, so item
// reordering alone never produces a change.
func diffItems(before, after []models.ReviewItem) []FieldChange {
	var changes []FieldChange

	beforeByQuestion := map[string]*models.ReviewItem{}
	for i := range before {
		beforeByQuestion[before[i].ScorecardQuestionID] = &before[i]
	}
	afterByQuestion := map[string]*models.ReviewItem{}
	for i := range after {
		afterByQuestion[after[i].ScorecardQuestionID] = &after[i]
	}

	for i := range after {
		item := &after[i]
		prev, existed := beforeByQuestion[item.ScorecardQuestionID]
		if !existed {
			prev = &models.ReviewItem{}
		}
		changes = append(changes, diffItem(item.ScorecardQuestionID, prev, item)...)
	}
	for i := range before {
		item := &before[i]
		if _, still := afterByQuestion[item.ScorecardQuestionID]; !still {
			changes = append(changes, diffItem(item.ScorecardQuestionID, item, &models.ReviewItem{})...)
		}
	}
	return changes
}

func diffItem(questionID string, before, after *models.ReviewItem) []FieldChange {
	var changes []FieldChange
	prefix := fmt.Sprintf("reviewItem[%s].", questionID)
	if before.InitialAnswer != after.InitialAnswer {
		changes = append(changes, FieldChange{prefix + "initialAnswer", before.InitialAnswer, after.InitialAnswer})
	}
	if before.FinalAnswer != after.FinalAnswer {
		changes = append(changes, FieldChange{prefix + "finalAnswer", before.FinalAnswer, after.FinalAnswer})
	}
	if before.ManagerComment != after.ManagerComment {
		changes = append(changes, FieldChange{prefix + "managerComment", before.ManagerComment, after.ManagerComment})
	}
	return changes
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatScore(score *float64) string {
	if score == nil {
		return "null"
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.UTC().Format(time.RFC3339)
}

// AuditService persists and queries the append-only audit trail.
type AuditService struct {
	db        *gorm.DB
	retention time.Duration
	scheduler *cron.Cron
}

func NewAuditService(db *gorm.DB, retentionDays int) *AuditService {
	if retentionDays <= 0 {
		retentionDays = 365
	}
	return &AuditService{
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Record writes one audit entry describing the given changes. A mutation
// with no observable change writes nothing unless force is set (copilot
// managerComment edits are always audited).
func (s *AuditService) Record(actor Actor, review *models.Review, changes []FieldChange, force bool) error {
	if len(changes) == 0 && !force {
		return nil
	}

	lines := make([]string, 0, len(changes))
	for _, change := range changes {
		lines = append(lines, change.String())
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "no field changes"
	}

	entry := &models.AuditEntry{
		ID:            uuid.NewString(),
		ActorMemberID: actor.MemberID,
		ReviewID:      review.ID,
		SubmissionID:  review.SubmissionID,
		ChallengeID:   review.ChallengeID,
		Description:   description,
		CreatedAt:     time.Now(),
	}
	return s.db.Create(entry).Error
}

type AuditListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ReviewID string `form:"review_id"`
	ActorID  int64  `form:"actor_id"`
}

type AuditListResponse struct {
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []models.AuditEntry `json:"items"`
}

// List returns paginated audit entries, newest first.
func (s *AuditService) List(req *AuditListRequest) (*AuditListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.AuditEntry{})
	if req.ReviewID != "" {
		query = query.Where("review_id = ?", req.ReviewID)
	}
	if req.ActorID != 0 {
		query = query.Where("actor_member_id = ?", req.ActorID)
	}

	var total int64
	query.Count(&total)

	var entries []models.AuditEntry
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}

	return &AuditListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    entries,
	}, nil
}

// Cleanup deletes audit entries older than the retention window.
func (s *AuditService) Cleanup() (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	result := s.db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.AuditEntry{})
	return result.RowsAffected, result.Error
}

// StartRetentionScheduler runs Cleanup nightly at 03:30.
func (s *AuditService) StartRetentionScheduler() {
	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc("30 3 * * *", func() {
		deleted, err := s.Cleanup()
		if err != nil {
			logger.Error().Err(err).Msg("audit retention cleanup failed")
			return
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("audit retention cleanup")
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to schedule audit retention cleanup")
		return
	}
	s.scheduler.Start()
}

// StopRetentionScheduler stops the cleanup scheduler.
func (s *AuditService) StopRetentionScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
