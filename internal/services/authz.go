package services

import (
	"fmt"

	"github.com/arenaworks/peerview/internal/clients"
)

// Actor is the authenticated caller. IsAdmin bypasses ownership and
// challenge-state gates; everything else is decided from the actor's
// resources on the challenge at hand.
type Actor struct {
	MemberID int64
	Handle   string
	IsAdmin  bool
}

// Decision is the tagged result of a pure authorization check:
// either Allow, or Deny with a stable reason code and offending ids.
type Decision struct {
	Allowed bool
	Code    string
	Message string
	Details map[string]interface{}
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(code, msg string) Decision {
	return Decision{Code: code, Message: msg}
}

// WithDetail attaches an offending id to a deny decision.
func (d Decision) WithDetail(key string, value interface{}) Decision {
	if d.Details == nil {
		d.Details = map[string]interface{}{}
	}
	d.Details[key] = value
	return d
}

// Err converts a deny decision into the AppError for its taxonomy kind.
// Returns nil for allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	err := codedError(d.Code, d.Message)
	for k, v := range d.Details {
		err = err.WithDetail(k, v)
	}
	return err
}

// ReviewMutation summarizes an update payload for the decision tree:
// which gates it trips, independent of the concrete field values.
type ReviewMutation struct {
	// TouchesImmutable is set when the payload carries resourceId,
	// scorecardId or submissionId.
	TouchesImmutable bool
	// StatusOnly is set when status is the only field in the payload.
	StatusOnly bool
}

// DecideReviewUpdate implements the update authorization tree:
//  1. immutable fields touched -> validation error, regardless of actor
//  2. admin -> allow
//  3. challenge completed -> deny
//  4. owner reviewer -> allow; copilot on the challenge -> status only;
//     no resource on the challenge at all -> not-copilot deny
func DecideReviewUpdate(actor Actor, reviewResourceID string, challenge *clients.Challenge, challengeResources []clients.Resource, mut ReviewMutation) Decision {
	if mut.TouchesImmutable {
		return Deny(CodeReviewUpdateImmutableFields,
			"resourceId, scorecardId and submissionId cannot be changed after creation")
	}

	if actor.IsAdmin {
		return Allow()
	}

	if challenge.IsCompleted() {
		return Deny(CodeReviewUpdateForbiddenChallengeCompleted,
			"reviews cannot be updated after the challenge completed").
			WithDetail("challengeId", challenge.ID)
	}

	own := memberResources(actor.MemberID, challengeResources)
	if len(own) == 0 {
		return Deny(CodeReviewUpdateForbiddenNotCopilot,
			"member holds no resource on this challenge").
			WithDetail("challengeId", challenge.ID).
			WithDetail("memberId", actor.MemberID)
	}

	if ownsResource(actor.MemberID, reviewResourceID, challengeResources) {
		return Allow()
	}

	if hasCopilotResource(actor.MemberID, challengeResources) {
		if mut.StatusOnly {
			return Allow()
		}
		return Deny(CodeReviewUpdateForbiddenNotOwner,
			"copilots may only transition review status").
			WithDetail("resourceId", reviewResourceID)
	}

	return Deny(CodeReviewUpdateForbiddenNotOwner,
		"review belongs to another member's resource").
		WithDetail("resourceId", reviewResourceID)
}

// DecideReviewDelete allows admins and challenge-assigned copilots only.
func DecideReviewDelete(actor Actor, challengeID string, challengeResources []clients.Resource) Decision {
	if actor.IsAdmin {
		return Allow()
	}
	if hasCopilotResource(actor.MemberID, challengeResources) {
		return Allow()
	}
	return Deny(CodeReviewDeleteForbiddenNotCopilot,
		"only admins and challenge copilots may delete reviews").
		WithDetail("challengeId", challengeID)
}

// ItemOp distinguishes the review item operations for deny-code selection.
type ItemOp int

const (
	ItemOpUpdate ItemOp = iota
	ItemOpDelete
	ItemOpCreateComments
)

// DecideItemMutation mirrors the update ownership rule for review items:
// owner reviewer or challenge-assigned copilot; admin bypasses. A member
// holding no resource on the challenge at all gets the not-copilot code.
func DecideItemMutation(actor Actor, op ItemOp, reviewResourceID string, challengeID string, challengeResources []clients.Resource) Decision {
	if actor.IsAdmin {
		return Allow()
	}

	own := memberResources(actor.MemberID, challengeResources)
	if len(own) == 0 {
		code := CodeReviewItemUpdateForbiddenNotCopilot
		if op == ItemOpCreateComments {
			code = CodeReviewItemCreateForbiddenNotCopilot
		}
		return Deny(code, "member holds no resource on this challenge").
			WithDetail("challengeId", challengeID).
			WithDetail("memberId", actor.MemberID)
	}

	if ownsResource(actor.MemberID, reviewResourceID, challengeResources) {
		return Allow()
	}
	if hasCopilotResource(actor.MemberID, challengeResources) {
		return Allow()
	}

	return Deny(CodeReviewItemUpdateForbiddenNotOwner,
		fmt.Sprintf("review item belongs to resource %s", reviewResourceID)).
		WithDetail("resourceId", reviewResourceID)
}
