package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/pkg/logger"
	"github.com/arenaworks/peerview/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// itemContext bundles everything the item operations need: the item, its
// parent review (with sibling items), the scorecard and the challenge
// resource list.
type itemContext struct {
	item      *models.ReviewItem
	review    *models.Review
	scorecard *models.Scorecard
}

// loadItemContext fetches the item with its parent review's resourceId,
// scorecardId and challengeId, enforcing the supplied-review match.
func (s *ReviewService) loadItemContext(itemID, suppliedReviewID string) (*itemContext, error) {
	var item models.ReviewItem
	if err := s.db.First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, codedError(CodeRecordNotFound, "review item not found").
				WithDetail("reviewItemId", itemID)
		}
		return nil, err
	}

	if suppliedReviewID != "" && suppliedReviewID != item.ReviewID {
		return nil, codedError(CodeReviewItemReviewMismatch, "item does not belong to the given review").
			WithDetail("reviewItemId", item.ID).
			WithDetail("reviewId", suppliedReviewID)
	}

	review, err := s.loadReview(item.ReviewID, false)
	if err != nil {
		return nil, err
	}
	scorecard, err := s.scorecards.GetByID(review.ScorecardID)
	if err != nil {
		return nil, err
	}

	return &itemContext{item: &item, review: review, scorecard: scorecard}, nil
}

type UpdateReviewItemRequest struct {
	ReviewID            string  `json:"review_id"`
	ScorecardQuestionID *string `json:"scorecard_question_id"`
	InitialAnswer       *string `json:"initial_answer"`
	FinalAnswer         *string `json:"final_answer"`
	ManagerComment      *string `json:"manager_comment"`
}

// UpdateItem mutates one review item and recomputes the parent review's
// scores. managerComment is writable by admins and copilots only, and a
// copilot managerComment edit is always audited even when nothing
// score-relevant changed.
func (s *ReviewService) UpdateItem(ctx context.Context, actor Actor, itemID string, req *UpdateReviewItemRequest) (*models.ReviewItem, error) {
	ic, err := s.loadItemContext(itemID, req.ReviewID)
	if err != nil {
		return nil, err
	}

	resources, err := s.resolver.ChallengeResources(ctx, NewLookup(), ic.review.ChallengeID)
	if err != nil {
		return nil, downstreamError(err, "resource lookup failed")
	}

	if decision := DecideItemMutation(actor, ItemOpUpdate, ic.review.ResourceID, ic.review.ChallengeID, resources); !decision.Allowed {
		return nil, decision.Err()
	}

	actingAsCopilot := !actor.IsAdmin && hasCopilotResource(actor.MemberID, resources)
	if req.ManagerComment != nil && !actor.IsAdmin && !actingAsCopilot {
		return nil, codedError(CodeReviewItemUpdateForbiddenNotCopilot,
			"managerComment is writable by copilots only").
			WithDetail("reviewItemId", ic.item.ID)
	}

	if req.ScorecardQuestionID != nil && *req.ScorecardQuestionID != ic.item.ScorecardQuestionID {
		if err := s.checkQuestion(ic.scorecard, *req.ScorecardQuestionID); err != nil {
			return nil, err
		}
		// One item per (review, question) pair.
		if sibling := ic.review.ItemByQuestion(*req.ScorecardQuestionID); sibling != nil && sibling.ID != ic.item.ID {
			return nil, response.NewValidation("BAD_REQUEST", "another item of this review already answers the question").
				WithDetail("reviewItemId", sibling.ID).
				WithDetail("scorecardQuestionId", *req.ScorecardQuestionID)
		}
	}

	before := snapshotReview(ic.review)

	live := ic.review.ItemByQuestion(ic.item.ScorecardQuestionID)
	if live == nil {
		live = ic.item
	}
	if req.ScorecardQuestionID != nil {
		live.ScorecardQuestionID = *req.ScorecardQuestionID
	}
	if req.InitialAnswer != nil {
		live.InitialAnswer = *req.InitialAnswer
	}
	if req.FinalAnswer != nil {
		live.FinalAnswer = *req.FinalAnswer
	}
	if req.ManagerComment != nil {
		live.ManagerComment = *req.ManagerComment
	}

	ic.review.InitialScore, ic.review.FinalScore = ComputeScores(ic.scorecard, ic.review.Items)
	ic.review.UpdatedBy = actor.MemberID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(live).Error; err != nil {
			return err
		}
		return tx.Omit("Items").Save(ic.review).Error
	})
	if err != nil {
		return nil, err
	}

	forceAudit := actingAsCopilot && req.ManagerComment != nil
	if err := s.audit.Record(actor, ic.review, DiffReviews(before, ic.review), forceAudit); err != nil {
		logger.Error().Err(err).Str("review_id", ic.review.ID).Msg("failed to write audit entry")
	}
	return live, nil
}

// DeleteItem removes one review item and recomputes the parent review's
// scores from the remaining items.
func (s *ReviewService) DeleteItem(ctx context.Context, actor Actor, itemID, suppliedReviewID string) error {
	ic, err := s.loadItemContext(itemID, suppliedReviewID)
	if err != nil {
		return err
	}

	resources, err := s.resolver.ChallengeResources(ctx, NewLookup(), ic.review.ChallengeID)
	if err != nil {
		return downstreamError(err, "resource lookup failed")
	}

	if decision := DecideItemMutation(actor, ItemOpDelete, ic.review.ResourceID, ic.review.ChallengeID, resources); !decision.Allowed {
		return decision.Err()
	}

	before := snapshotReview(ic.review)

	remaining := ic.review.Items[:0]
	for _, item := range ic.review.Items {
		if item.ID != ic.item.ID {
			remaining = append(remaining, item)
		}
	}
	ic.review.Items = remaining
	ic.review.InitialScore, ic.review.FinalScore = ComputeScores(ic.scorecard, ic.review.Items)
	ic.review.UpdatedBy = actor.MemberID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ReviewItem{}, "id = ?", ic.item.ID).Error; err != nil {
			return err
		}
		return tx.Omit("Items").Save(ic.review).Error
	})
	if err != nil {
		return err
	}

	if err := s.audit.Record(actor, ic.review, DiffReviews(before, ic.review), false); err != nil {
		logger.Error().Err(err).Str("review_id", ic.review.ID).Msg("failed to write audit entry")
	}
	return nil
}

type ItemCommentRequest struct {
	Content    string `json:"content" binding:"required"`
	Type       string `json:"type" binding:"omitempty,oneof=COMMENT APPEAL APPEAL_RESPONSE"`
	ResourceID string `json:"resource_id"`
}

type CreateItemCommentsRequest struct {
	ReviewID string               `json:"review_id"`
	Comments []ItemCommentRequest `json:"comments" binding:"required,min=1,dive"`
}

// CreateItemComments appends comment/appeal entries to a review item.
func (s *ReviewService) CreateItemComments(ctx context.Context, actor Actor, itemID string, req *CreateItemCommentsRequest) ([]models.ReviewItemComment, error) {
	ic, err := s.loadItemContext(itemID, req.ReviewID)
	if err != nil {
		return nil, err
	}

	resources, err := s.resolver.ChallengeResources(ctx, NewLookup(), ic.review.ChallengeID)
	if err != nil {
		return nil, downstreamError(err, "resource lookup failed")
	}

	if decision := DecideItemMutation(actor, ItemOpCreateComments, ic.review.ResourceID, ic.review.ChallengeID, resources); !decision.Allowed {
		return nil, decision.Err()
	}

	var sortBase int64
	s.db.Model(&models.ReviewItemComment{}).Where("review_item_id = ?", ic.item.ID).Count(&sortBase)

	comments := make([]models.ReviewItemComment, 0, len(req.Comments))
	for i, comment := range req.Comments {
		resourceID := comment.ResourceID
		if resourceID == "" {
			resourceID = ic.review.ResourceID
		} else if !actor.IsAdmin && !ownsResource(actor.MemberID, resourceID, resources) {
			return nil, codedError(CodeResourceMemberMismatch, "comment resource belongs to another member").
				WithDetail("resourceId", resourceID)
		}

		commentType := comment.Type
		if commentType == "" {
			commentType = models.CommentTypeComment
		}

		comments = append(comments, models.ReviewItemComment{
			ID:           uuid.NewString(),
			ReviewItemID: ic.item.ID,
			ResourceID:   resourceID,
			Type:         commentType,
			Content:      comment.Content,
			SortOrder:    int(sortBase) + i,
		})
	}

	if err := s.db.Create(&comments).Error; err != nil {
		return nil, err
	}

	change := []FieldChange{{
		Field: "reviewItem[" + ic.item.ScorecardQuestionID + "].comments",
		Old:   "",
		New:   "added " + strconv.Itoa(len(comments)),
	}}
	if err := s.audit.Record(actor, ic.review, change, true); err != nil {
		logger.Error().Err(err).Str("review_id", ic.review.ID).Msg("failed to write audit entry")
	}
	return comments, nil
}
