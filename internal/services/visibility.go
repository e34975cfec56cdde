package services

import (
	"strings"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
)

// ViewLevel is the outcome of a visibility decision for one review.
type ViewLevel int

const (
	// ViewFull returns scores and items untouched.
	ViewFull ViewLevel = iota
	// ViewMasked strips scores and items but keeps reviewer identity
	// metadata, so it stays visible who reviewed.
	ViewMasked
	// ViewDenied rejects a single fetch outright. List queries treat
	// denied reviews of own submissions as masked and drop the rest.
	ViewDenied
)

// ViewDecision carries the level plus the deny code for single fetches.
type ViewDecision struct {
	Level    ViewLevel
	DenyCode string
	// OwnSubmission is set for submitters viewing their own submission's
	// reviews; list queries mask those instead of dropping them.
	OwnSubmission bool
}

// DecideReviewView applies the visibility rules for one actor and review.
// challengeResources is the full resource list of the review's challenge;
// submission may be nil when ownership could not be resolved.
func DecideReviewView(actor Actor, review *models.Review, challenge *clients.Challenge, challengeResources []clients.Resource, submission *clients.Submission) ViewDecision {
	if actor.IsAdmin {
		return ViewDecision{Level: ViewFull}
	}

	own := memberResources(actor.MemberID, challengeResources)

	var isCopilot, isGrader, isSubmitter bool
	for _, res := range own {
		switch RoleKindOf(res.RoleName) {
		case RoleCopilot, RoleManager:
			isCopilot = true
		case RoleReviewer, RoleScreener:
			isGrader = true
		case RoleSubmitter:
			isSubmitter = true
		case RoleObserver, RoleUnknown:
			// read access only through other roles
		}
	}

	if isCopilot {
		return ViewDecision{Level: ViewFull}
	}

	if isGrader {
		if ownsResource(actor.MemberID, review.ResourceID, challengeResources) {
			return ViewDecision{Level: ViewFull}
		}
		// Screening results stay visible to the other reviewers of the
		// same submission.
		if challenge.IsCompleted() || isScreeningReview(review, challenge) {
			return ViewDecision{Level: ViewFull}
		}
		return ViewDecision{Level: ViewMasked}
	}

	if isSubmitter {
		if submission == nil || submission.MemberID != actor.MemberID {
			return ViewDecision{
				Level:    ViewDenied,
				DenyCode: CodeForbiddenReviewAccessReviewerSelf,
			}
		}
		if submitterUnmasked(review, challenge) {
			return ViewDecision{Level: ViewFull, OwnSubmission: true}
		}
		return ViewDecision{
			Level:         ViewDenied,
			DenyCode:      CodeForbiddenReviewAccessPhase,
			OwnSubmission: true,
		}
	}

	return ViewDecision{
		Level:    ViewDenied,
		DenyCode: CodeForbiddenReviewAccessReviewerSelf,
	}
}

// submitterUnmasked reports whether a submitter may see scores and items:
// the challenge completed, an appeals phase is open, the appeals window
// has passed (review phase and every appeals phase closed), or a closed
// Iterative Review phase on a challenge that carries no appeals phases.
// Regular review phases without appeals stay masked until the challenge
// completes. Phases never reopen, so each condition is monotonic for a
// given review.
func submitterUnmasked(review *models.Review, challenge *clients.Challenge) bool {
	if challenge.IsCompleted() {
		return true
	}

	hasAppeals := false
	for _, phase := range challenge.Phases {
		if isAppealsPhaseName(phase.Name) {
			hasAppeals = true
			if phase.IsOpen {
				return true
			}
		}
	}

	phase := challenge.PhaseByID(review.PhaseID)
	if phase == nil || phase.IsOpen {
		return false
	}

	if hasAppeals {
		// Every appeals phase is closed and so is the review's phase;
		// the appeals window cannot come back, keep the review visible.
		return true
	}
	return isIterativeReviewPhaseName(phase.Name)
}

func isAppealsPhaseName(name string) bool {
	return strings.Contains(strings.ToLower(name), "appeals")
}

func isIterativeReviewPhaseName(name string) bool {
	return strings.Contains(strings.ToLower(name), "iterative review")
}

// isScreeningReview reports whether the review sits on a screening phase.
func isScreeningReview(review *models.Review, challenge *clients.Challenge) bool {
	phase := challenge.PhaseByID(review.PhaseID)
	if phase == nil {
		return false
	}
	return strings.Contains(strings.ToLower(phase.Name), "screening")
}

// MaskReview returns a copy with scores nulled and items emptied while
// retaining reviewer identity metadata.
func MaskReview(review *models.Review) *models.Review {
	masked := *review
	masked.InitialScore = nil
	masked.FinalScore = nil
	masked.Items = []models.ReviewItem{}
	return &masked
}
