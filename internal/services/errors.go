package services

import "github.com/arenaworks/peerview/pkg/response"

// Stable machine-readable error codes. These are the contract the API
// layer maps onto transport responses; callers must never need to
// string-match messages.
const (
	// NotFound kind
	CodeRecordNotFound            = "RECORD_NOT_FOUND"
	CodeReviewNotFound            = "REVIEW_NOT_FOUND"
	CodeReviewPhaseNotFound       = "REVIEW_PHASE_NOT_FOUND"
	CodeScorecardQuestionNotFound = "SCORECARD_QUESTION_NOT_FOUND"

	// Validation kind
	CodeReviewItemReviewMismatch    = "REVIEW_ITEM_REVIEW_MISMATCH"
	CodeScorecardQuestionMismatch   = "SCORECARD_QUESTION_MISMATCH"
	CodeReviewUpdateImmutableFields = "REVIEW_UPDATE_IMMUTABLE_FIELDS"
	CodeReviewAlreadyExists         = "REVIEW_ALREADY_EXISTS"

	// Authorization kind
	CodeResourceMemberMismatch                  = "RESOURCE_MEMBER_MISMATCH"
	CodeResourcePhaseMismatch                   = "RESOURCE_PHASE_MISMATCH"
	CodeForbiddenCreateReview                   = "FORBIDDEN_CREATE_REVIEW"
	CodeReviewUpdateForbiddenNotOwner           = "REVIEW_UPDATE_FORBIDDEN_NOT_OWNER"
	CodeReviewUpdateForbiddenNotCopilot         = "REVIEW_UPDATE_FORBIDDEN_NOT_COPILOT"
	CodeReviewUpdateForbiddenChallengeCompleted = "REVIEW_UPDATE_FORBIDDEN_CHALLENGE_COMPLETED"
	CodeReviewItemUpdateForbiddenNotOwner       = "REVIEW_ITEM_UPDATE_FORBIDDEN_NOT_OWNER"
	CodeReviewItemUpdateForbiddenNotCopilot     = "REVIEW_ITEM_UPDATE_FORBIDDEN_NOT_COPILOT"
	CodeReviewItemCreateForbiddenNotCopilot     = "REVIEW_ITEM_CREATE_FORBIDDEN_NOT_COPILOT"
	CodeReviewDeleteForbiddenNotCopilot         = "REVIEW_DELETE_FORBIDDEN_NOT_COPILOT"
	CodeForbiddenReviewAccessReviewerSelf       = "FORBIDDEN_REVIEW_ACCESS_REVIEWER_SELF"
	CodeForbiddenReviewAccessPhase              = "FORBIDDEN_REVIEW_ACCESS_PHASE"
)

var validationCodes = map[string]bool{
	CodeReviewItemReviewMismatch:    true,
	CodeScorecardQuestionMismatch:   true,
	CodeReviewUpdateImmutableFields: true,
	CodeReviewAlreadyExists:         true,
}

var notFoundCodes = map[string]bool{
	CodeRecordNotFound:            true,
	CodeReviewNotFound:            true,
	CodeReviewPhaseNotFound:       true,
	CodeScorecardQuestionNotFound: true,
}

// codedError builds the AppError matching a code's taxonomy kind.
func codedError(code, msg string) *response.AppError {
	switch {
	case validationCodes[code]:
		return response.NewValidation(code, msg)
	case notFoundCodes[code]:
		return response.NewNotFound(code, msg)
	default:
		return response.NewForbidden(code, msg)
	}
}
