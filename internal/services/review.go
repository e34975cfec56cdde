package services

import (
	"context"
	"errors"
	"time"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/pkg/logger"
	"github.com/arenaworks/peerview/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewService sequences the engine components for the review lifecycle:
// resolver on create, authorization on every call, score aggregation when
// items change, audit diffing on every mutation, masking on reads and the
// completion event on transition into COMPLETED.
type ReviewService struct {
	db          *gorm.DB
	scorecards  *ScorecardService
	resolver    *Resolver
	members     MemberDirectory
	submissions SubmissionDirectory
	audit       *AuditService
	bus         EventBus
}

func NewReviewService(db *gorm.DB, scorecards *ScorecardService, resolver *Resolver, members MemberDirectory, submissions SubmissionDirectory, audit *AuditService, bus EventBus) *ReviewService {
	return &ReviewService{
		db:          db,
		scorecards:  scorecards,
		resolver:    resolver,
		members:     members,
		submissions: submissions,
		audit:       audit,
		bus:         bus,
	}
}

// downstreamError maps a directory failure: absent entity surfaces as
// not-found, anything else is logged with context and wrapped generic.
func downstreamError(err error, msg string) error {
	if errors.Is(err, clients.ErrNotFound) {
		return codedError(CodeRecordNotFound, msg)
	}
	logger.Error().Err(err).Msg(msg)
	return response.NewServerError(msg)
}

// getSubmission memoizes submission lookups within one request.
func (s *ReviewService) getSubmission(ctx context.Context, lk *Lookup, submissionID string) (*clients.Submission, error) {
	if sub, ok := lk.submissions[submissionID]; ok {
		return sub, nil
	}
	sub, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	lk.submissions[submissionID] = sub
	return sub, nil
}

// --- Create ---

type CreateReviewRequest struct {
	SubmissionID string                    `json:"submission_id" binding:"required"`
	ScorecardID  string                    `json:"scorecard_id" binding:"required"`
	TypeID       string                    `json:"type_id"`
	ResourceID   string                    `json:"resource_id"`
	PhaseID      string                    `json:"phase_id"`
	Status       string                    `json:"status" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	Committed    bool                      `json:"committed"`
	Metadata     string                    `json:"metadata"`
	ReviewDate   *time.Time                `json:"review_date"`
	Items        []CreateReviewItemRequest `json:"review_items"`
}

type CreateReviewItemRequest struct {
	ScorecardQuestionID string `json:"scorecard_question_id" binding:"required"`
	InitialAnswer       string `json:"initial_answer"`
	FinalAnswer         string `json:"final_answer"`
}

// Create resolves phase and resource, persists the review, aggregates
// scores when items were submitted and fires the completion event when
// the review is created already COMPLETED.
func (s *ReviewService) Create(ctx context.Context, actor Actor, req *CreateReviewRequest) (*models.Review, error) {
	lk := NewLookup()
	submission, err := s.getSubmission(ctx, lk, req.SubmissionID)
	if err != nil {
		return nil, downstreamError(err, "submission lookup failed")
	}

	scorecard, err := s.scorecards.GetByID(req.ScorecardID)
	if err != nil {
		return nil, err
	}

	resource, phase, err := s.resolver.ResolveResource(ctx, lk, actor, submission.ChallengeID, scorecard.Type, req.ResourceID)
	if err != nil {
		return nil, err
	}

	if req.PhaseID != "" && req.PhaseID != phase.ID {
		return nil, codedError(CodeResourcePhaseMismatch, "supplied phase does not match the review phase").
			WithDetail("phaseId", req.PhaseID).
			WithDetail("resolvedPhaseId", phase.ID)
	}

	// One review per (submission, scorecard, resource).
	var existing int64
	if err := s.db.Model(&models.Review{}).
		Where("submission_id = ? AND scorecard_id = ? AND resource_id = ?", submission.ID, scorecard.ID, resource.ID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, codedError(CodeReviewAlreadyExists, "a review already exists for this submission, scorecard and resource").
			WithDetail("submissionId", submission.ID).
			WithDetail("scorecardId", scorecard.ID).
			WithDetail("resourceId", resource.ID)
	}

	status := req.Status
	if status == "" {
		status = models.ReviewStatusPending
	}

	review := &models.Review{
		ID:           uuid.NewString(),
		SubmissionID: submission.ID,
		ChallengeID:  submission.ChallengeID,
		ScorecardID:  scorecard.ID,
		TypeID:       req.TypeID,
		ResourceID:   resource.ID,
		PhaseID:      phase.ID,
		Status:       status,
		Committed:    req.Committed,
		Metadata:     req.Metadata,
		ReviewDate:   req.ReviewDate,
		CreatedBy:    actor.MemberID,
		UpdatedBy:    actor.MemberID,
	}

	seen := map[string]bool{}
	for i, item := range req.Items {
		if seen[item.ScorecardQuestionID] {
			return nil, response.NewValidation("BAD_REQUEST", "duplicate scorecard question in review items").
				WithDetail("scorecardQuestionId", item.ScorecardQuestionID)
		}
		seen[item.ScorecardQuestionID] = true

		if err := s.checkQuestion(scorecard, item.ScorecardQuestionID); err != nil {
			return nil, err
		}
		review.Items = append(review.Items, models.ReviewItem{
			ID:                  uuid.NewString(),
			ReviewID:            review.ID,
			ScorecardQuestionID: item.ScorecardQuestionID,
			InitialAnswer:       item.InitialAnswer,
			FinalAnswer:         item.FinalAnswer,
			SortOrder:           i,
		})
	}

	if len(review.Items) > 0 {
		review.InitialScore, review.FinalScore = ComputeScores(scorecard, review.Items)
	}

	if err := s.db.Create(review).Error; err != nil {
		return nil, err
	}

	if err := s.audit.Record(actor, review, DiffReviews(&models.Review{}, review), false); err != nil {
		logger.Error().Err(err).Str("review_id", review.ID).Msg("failed to write audit entry")
	}

	if review.Status == models.ReviewStatusCompleted {
		s.emitCompleted(ctx, lk, review, resource)
	}
	return review, nil
}

// checkQuestion validates that a question id resolves to a question under
// the review's own scorecard.
func (s *ReviewService) checkQuestion(scorecard *models.Scorecard, questionID string) error {
	if scorecard.HasQuestion(questionID) {
		return nil
	}

	var count int64
	s.db.Model(&models.ScorecardQuestion{}).Where("id = ?", questionID).Count(&count)
	if count == 0 {
		return codedError(CodeScorecardQuestionNotFound, "scorecard question not found").
			WithDetail("scorecardQuestionId", questionID)
	}
	return codedError(CodeScorecardQuestionMismatch, "question belongs to another scorecard").
		WithDetail("scorecardQuestionId", questionID).
		WithDetail("scorecardId", scorecard.ID)
}

// --- Update ---

type UpsertReviewItemRequest struct {
	ScorecardQuestionID string  `json:"scorecard_question_id" binding:"required"`
	InitialAnswer       *string `json:"initial_answer"`
	FinalAnswer         *string `json:"final_answer"`
	ManagerComment      *string `json:"manager_comment"`
}

type UpdateReviewRequest struct {
	// Immutable after creation; supplying any of them fails the update.
	ResourceID   *string `json:"resource_id"`
	ScorecardID  *string `json:"scorecard_id"`
	SubmissionID *string `json:"submission_id"`

	Status     *string    `json:"status" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	Committed  *bool      `json:"committed"`
	TypeID     *string    `json:"type_id"`
	Metadata   *string    `json:"metadata"`
	ReviewDate *time.Time `json:"review_date"`

	// Explicit score overrides; when absent, scores are recomputed from
	// the current items.
	InitialScore *float64 `json:"initial_score"`
	FinalScore   *float64 `json:"final_score"`

	Items []UpsertReviewItemRequest `json:"review_items"`
}

// Mutation summarizes the payload for the authorization decision tree.
func (r *UpdateReviewRequest) Mutation() ReviewMutation {
	touchesImmutable := r.ResourceID != nil || r.ScorecardID != nil || r.SubmissionID != nil
	statusOnly := r.Status != nil &&
		r.Committed == nil && r.TypeID == nil && r.Metadata == nil &&
		r.ReviewDate == nil && r.InitialScore == nil && r.FinalScore == nil &&
		len(r.Items) == 0
	return ReviewMutation{TouchesImmutable: touchesImmutable, StatusOnly: statusOnly}
}

// Update applies a partial review update under the authorization tree,
// recomputes scores, records the audit diff and emits the completion
// event when the status transitioned into COMPLETED.
func (s *ReviewService) Update(ctx context.Context, actor Actor, reviewID string, req *UpdateReviewRequest) (*models.Review, error) {
	mutation := req.Mutation()
	if mutation.TouchesImmutable {
		return nil, codedError(CodeReviewUpdateImmutableFields,
			"resourceId, scorecardId and submissionId cannot be changed after creation")
	}

	review, err := s.loadReview(reviewID, false)
	if err != nil {
		return nil, err
	}

	// Immutable fields and the admin bypass are decided without directory
	// data, so neither outcome depends on directory availability. Everyone
	// else goes through the full decision tree.
	lk := NewLookup()
	if !actor.IsAdmin {
		challenge, err := s.resolver.Challenge(ctx, lk, review.ChallengeID)
		if err != nil {
			return nil, downstreamError(err, "challenge lookup failed")
		}
		resources, err := s.resolver.ChallengeResources(ctx, lk, review.ChallengeID)
		if err != nil {
			return nil, downstreamError(err, "resource lookup failed")
		}

		if decision := DecideReviewUpdate(actor, review.ResourceID, challenge, resources, mutation); !decision.Allowed {
			return nil, decision.Err()
		}
	}

	before := snapshotReview(review)
	wasCompleted := review.Status == models.ReviewStatusCompleted

	if req.Status != nil {
		review.Status = *req.Status
	}
	if req.Committed != nil {
		review.Committed = *req.Committed
	}
	if req.TypeID != nil {
		review.TypeID = *req.TypeID
	}
	if req.Metadata != nil {
		review.Metadata = *req.Metadata
	}
	if req.ReviewDate != nil {
		review.ReviewDate = req.ReviewDate
	}

	var scorecard *models.Scorecard
	if len(req.Items) > 0 {
		scorecard, err = s.scorecards.GetByID(review.ScorecardID)
		if err != nil {
			return nil, err
		}
		for _, item := range req.Items {
			if err := s.checkQuestion(scorecard, item.ScorecardQuestionID); err != nil {
				return nil, err
			}
			applyItemUpsert(review, &item)
		}
	}

	// Scores follow the items unless explicitly overridden.
	if req.InitialScore != nil || req.FinalScore != nil {
		if req.InitialScore != nil {
			review.InitialScore = req.InitialScore
		}
		if req.FinalScore != nil {
			review.FinalScore = req.FinalScore
		}
	} else if len(req.Items) > 0 {
		review.InitialScore, review.FinalScore = ComputeScores(scorecard, review.Items)
	}

	review.UpdatedBy = actor.MemberID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range review.Items {
			item := &review.Items[i]
			if item.CreatedAt.IsZero() {
				if err := tx.Create(item).Error; err != nil {
					return err
				}
			} else if err := tx.Save(item).Error; err != nil {
				return err
			}
		}
		return tx.Omit("Items").Save(review).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(actor, review, DiffReviews(before, review), false); err != nil {
		logger.Error().Err(err).Str("review_id", review.ID).Msg("failed to write audit entry")
	}

	if !wasCompleted && review.Status == models.ReviewStatusCompleted {
		s.emitCompleted(ctx, lk, review, nil)
	}
	return review, nil
}

// applyItemUpsert updates the item answering the question, or appends a
// new one. One item per (review, question) pair.
func applyItemUpsert(review *models.Review, req *UpsertReviewItemRequest) {
	item := review.ItemByQuestion(req.ScorecardQuestionID)
	if item == nil {
		review.Items = append(review.Items, models.ReviewItem{
			ID:                  uuid.NewString(),
			ReviewID:            review.ID,
			ScorecardQuestionID: req.ScorecardQuestionID,
			SortOrder:           len(review.Items),
		})
		item = &review.Items[len(review.Items)-1]
	}
	if req.InitialAnswer != nil {
		item.InitialAnswer = *req.InitialAnswer
	}
	if req.FinalAnswer != nil {
		item.FinalAnswer = *req.FinalAnswer
	}
	if req.ManagerComment != nil {
		item.ManagerComment = *req.ManagerComment
	}
}

// --- Delete ---

// Delete removes a review and its items. Admin and challenge copilots
// only.
func (s *ReviewService) Delete(ctx context.Context, actor Actor, reviewID string) error {
	review, err := s.loadReview(reviewID, false)
	if err != nil {
		return err
	}

	lk := NewLookup()
	resources, err := s.resolver.ChallengeResources(ctx, lk, review.ChallengeID)
	if err != nil {
		return downstreamError(err, "resource lookup failed")
	}

	if decision := DecideReviewDelete(actor, review.ChallengeID, resources); !decision.Allowed {
		return decision.Err()
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", review.ID).Delete(&models.ReviewItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(review).Error
	})
	if err != nil {
		return err
	}

	change := []FieldChange{{Field: "deleted", Old: "false", New: "true"}}
	if err := s.audit.Record(actor, review, change, true); err != nil {
		logger.Error().Err(err).Str("review_id", review.ID).Msg("failed to write audit entry")
	}
	return nil
}

// --- Read ---

// Get returns one review with visibility rules applied: full for the
// entitled, masked or denied for everyone else.
func (s *ReviewService) Get(ctx context.Context, actor Actor, reviewID string) (*models.Review, error) {
	review, err := s.loadReview(reviewID, true)
	if err != nil {
		return nil, err
	}

	lk := NewLookup()
	challenge, err := s.resolver.Challenge(ctx, lk, review.ChallengeID)
	if err != nil {
		return nil, downstreamError(err, "challenge lookup failed")
	}
	resources, err := s.resolver.ChallengeResources(ctx, lk, review.ChallengeID)
	if err != nil {
		return nil, downstreamError(err, "resource lookup failed")
	}

	// Submission ownership gates submitter access, so a failed lookup
	// aborts rather than degrades.
	submission, err := s.getSubmission(ctx, lk, review.SubmissionID)
	if err != nil && !errors.Is(err, clients.ErrNotFound) {
		return nil, downstreamError(err, "submission lookup failed")
	}

	decision := DecideReviewView(actor, review, challenge, resources, submission)
	switch decision.Level {
	case ViewDenied:
		return nil, codedError(decision.DenyCode, "review access denied").
			WithDetail("reviewId", review.ID)
	case ViewMasked:
		review = MaskReview(review)
	case ViewFull:
		// untouched
	}

	s.enrichReviews(ctx, []*models.Review{review}, resources)
	return review, nil
}

type ReviewListRequest struct {
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ChallengeID  string `form:"challenge_id"`
	SubmissionID string `form:"submission_id"`
	ScorecardID  string `form:"scorecard_id"`
	ResourceID   string `form:"resource_id"`
	Status       string `form:"status"`
}

type ReviewListResponse struct {
	// Total counts every review matching the filters, before per-review
	// visibility runs. Visibility is evaluated on the fetched page only,
	// so a page can hold fewer entries than PageSize once denied reviews
	// are dropped; clients paginate by Total and tolerate short pages.
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []*models.Review `json:"items"`
}

// List returns reviews matching the filters with per-review visibility:
// reviews the actor is not yet entitled to see arrive masked rather than
// failing the whole query; reviews of other members' submissions are
// dropped for submitters.
func (s *ReviewService) List(ctx context.Context, actor Actor, req *ReviewListRequest) (*ReviewListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Review{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Items.Comments", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") })
	if req.ChallengeID != "" {
		query = query.Where("challenge_id = ?", req.ChallengeID)
	}
	if req.SubmissionID != "" {
		query = query.Where("submission_id = ?", req.SubmissionID)
	}
	if req.ScorecardID != "" {
		query = query.Where("scorecard_id = ?", req.ScorecardID)
	}
	if req.ResourceID != "" {
		query = query.Where("resource_id = ?", req.ResourceID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	query.Count(&total)

	var reviews []models.Review
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, err
	}

	lk := NewLookup()
	visible := make([]*models.Review, 0, len(reviews))
	for i := range reviews {
		review := &reviews[i]

		challenge, err := s.resolver.Challenge(ctx, lk, review.ChallengeID)
		if err != nil {
			return nil, downstreamError(err, "challenge lookup failed")
		}
		resources, err := s.resolver.ChallengeResources(ctx, lk, review.ChallengeID)
		if err != nil {
			return nil, downstreamError(err, "resource lookup failed")
		}

		submission, err := s.getSubmission(ctx, lk, review.SubmissionID)
		if err != nil && !errors.Is(err, clients.ErrNotFound) {
			return nil, downstreamError(err, "submission lookup failed")
		}

		decision := DecideReviewView(actor, review, challenge, resources, submission)
		switch decision.Level {
		case ViewFull:
			visible = append(visible, review)
		case ViewMasked:
			visible = append(visible, MaskReview(review))
		case ViewDenied:
			// Own-submission reviews come back masked in list context;
			// everything else is filtered out.
			if decision.OwnSubmission {
				visible = append(visible, MaskReview(review))
			}
		}
	}

	for challengeID := range lk.resources {
		s.enrichReviews(ctx, visible, lk.resources[challengeID])
	}

	return &ReviewListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    visible,
	}, nil
}

// loadReview fetches a review, optionally with its item/comment tree.
func (s *ReviewService) loadReview(reviewID string, withComments bool) (*models.Review, error) {
	query := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") })
	if withComments {
		query = query.Preload("Items.Comments", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") })
	}

	var review models.Review
	if err := query.First(&review, "id = ?", reviewID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, codedError(CodeReviewNotFound, "review not found").
				WithDetail("reviewId", reviewID)
		}
		return nil, err
	}
	return &review, nil
}

// snapshotReview deep-copies the fields the audit diff inspects.
func snapshotReview(review *models.Review) *models.Review {
	copied := *review
	copied.Items = make([]models.ReviewItem, len(review.Items))
	copy(copied.Items, review.Items)
	return &copied
}

// enrichReviews joins reviewer identity (handle, max rating) in from the
// directories. Resolution failures degrade to omitted fields.
func (s *ReviewService) enrichReviews(ctx context.Context, reviews []*models.Review, resources []clients.Resource) {
	byResourceID := map[string]*clients.Resource{}
	for i := range resources {
		byResourceID[resources[i].ID] = &resources[i]
	}

	var memberIDs []int64
	for _, review := range reviews {
		if res, ok := byResourceID[review.ResourceID]; ok {
			review.ReviewerHandle = res.MemberHandle
			memberIDs = append(memberIDs, res.MemberID)
		}
	}

	profiles, err := s.members.GetMembers(ctx, memberIDs)
	if err != nil {
		logger.Warn().Err(err).Msg("member enrichment failed, omitting identity fields")
		return
	}
	for _, review := range reviews {
		res, ok := byResourceID[review.ResourceID]
		if !ok {
			continue
		}
		if profile, found := profiles[res.MemberID]; found {
			if profile.Handle != "" {
				review.ReviewerHandle = profile.Handle
			}
			review.ReviewerMaxRating = profile.MaxRating
		}
	}
}

// emitCompleted assembles and publishes the completion event. All lookup
// failures degrade to partial payloads; publish failure is logged and
// never rolls back the mutation.
func (s *ReviewService) emitCompleted(ctx context.Context, lk *Lookup, review *models.Review, reviewer *clients.Resource) {
	if reviewer == nil {
		if resources, err := s.resolver.ChallengeResources(ctx, lk, review.ChallengeID); err == nil {
			for i := range resources {
				if resources[i].ID == review.ResourceID {
					reviewer = &resources[i]
					break
				}
			}
		}
	}

	submission, err := s.getSubmission(ctx, lk, review.SubmissionID)
	if err != nil {
		logger.Warn().Err(err).Str("review_id", review.ID).Msg("completion event: submission lookup failed")
		submission = nil
	}

	var memberIDs []int64
	if reviewer != nil {
		memberIDs = append(memberIDs, reviewer.MemberID)
	}
	if submission != nil {
		memberIDs = append(memberIDs, submission.MemberID)
	}
	profiles, err := s.members.GetMembers(ctx, memberIDs)
	if err != nil {
		logger.Warn().Err(err).Str("review_id", review.ID).Msg("completion event: member lookup failed")
		profiles = map[int64]clients.MemberProfile{}
	}

	event := BuildReviewCompletedEvent(review, reviewer, submission, profiles)
	if err := s.bus.Publish(TopicReviewCompleted, event); err != nil {
		logger.Error().Err(err).Str("review_id", review.ID).Msg("failed to publish completion event")
	}
}
