package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
)

// Directory interfaces consumed by the engine. Implemented by the HTTP
// clients in internal/clients; test doubles implement them directly.

type ChallengeDirectory interface {
	GetChallenge(ctx context.Context, challengeID string) (*clients.Challenge, error)
}

type ResourceDirectory interface {
	ListResources(ctx context.Context, challengeID string, memberID int64) ([]clients.Resource, error)
}

type MemberDirectory interface {
	GetMembers(ctx context.Context, memberIDs []int64) (map[int64]clients.MemberProfile, error)
}

type SubmissionDirectory interface {
	GetSubmission(ctx context.Context, submissionID string) (*clients.Submission, error)
}

// phaseNameByScorecardType maps a scorecard type to the canonical phase
// name a review of that type attaches to.
var phaseNameByScorecardType = map[string]string{
	models.ScorecardTypeReview:              "Review",
	models.ScorecardTypeIterativeReview:     "Iterative Review",
	models.ScorecardTypeScreening:           "Screening",
	models.ScorecardTypeCheckpointScreening: "Checkpoint Screening",
	models.ScorecardTypeCheckpointReview:    "Checkpoint Review",
	models.ScorecardTypeApproval:            "Approval",
}

// iterativeReviewPhaseName is the fallback when the canonical phase is
// absent from the challenge timeline.
const iterativeReviewPhaseName = "Iterative Review"

// Lookup memoizes challenge and resource fetches for the duration of one
// request. It is created per request and passed down explicitly; it must
// never be shared across actors or requests, or authorization decisions
// could go stale.
type Lookup struct {
	challenges  map[string]*clients.Challenge
	resources   map[string][]clients.Resource
	submissions map[string]*clients.Submission
}

func NewLookup() *Lookup {
	return &Lookup{
		challenges:  map[string]*clients.Challenge{},
		resources:   map[string][]clients.Resource{},
		submissions: map[string]*clients.Submission{},
	}
}

// Resolver finds the review phase and the acting member's eligible
// resource for a (challenge, scorecard type) pair.
type Resolver struct {
	challenges ChallengeDirectory
	resources  ResourceDirectory
}

func NewResolver(challenges ChallengeDirectory, resources ResourceDirectory) *Resolver {
	return &Resolver{challenges: challenges, resources: resources}
}

// Challenge returns the memoized challenge snapshot, fetching on miss.
func (r *Resolver) Challenge(ctx context.Context, lk *Lookup, challengeID string) (*clients.Challenge, error) {
	if ch, ok := lk.challenges[challengeID]; ok {
		return ch, nil
	}
	ch, err := r.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("fetch challenge %s: %w", challengeID, err)
	}
	lk.challenges[challengeID] = ch
	return ch, nil
}

// ChallengeResources returns the memoized full resource list of a
// challenge, fetching on miss.
func (r *Resolver) ChallengeResources(ctx context.Context, lk *Lookup, challengeID string) ([]clients.Resource, error) {
	if resources, ok := lk.resources[challengeID]; ok {
		return resources, nil
	}
	resources, err := r.resources.ListResources(ctx, challengeID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch resources for challenge %s: %w", challengeID, err)
	}
	lk.resources[challengeID] = resources
	return resources, nil
}

// ResolvePhase maps the scorecard type to its phase on the challenge,
// falling back to "Iterative Review" before failing.
func (r *Resolver) ResolvePhase(ctx context.Context, lk *Lookup, challengeID, scorecardType string) (*clients.Phase, error) {
	ch, err := r.Challenge(ctx, lk, challengeID)
	if err != nil {
		return nil, err
	}
	return resolvePhase(ch, scorecardType)
}

// resolvePhase is the pure phase-mapping step, separated for testing.
func resolvePhase(ch *clients.Challenge, scorecardType string) (*clients.Phase, error) {
	name, ok := phaseNameByScorecardType[scorecardType]
	if !ok {
		name = iterativeReviewPhaseName
	}

	if phase := ch.PhaseByName(name); phase != nil {
		return phase, nil
	}
	if phase := ch.PhaseByName(iterativeReviewPhaseName); phase != nil {
		return phase, nil
	}

	return nil, codedError(CodeReviewPhaseNotFound,
		fmt.Sprintf("challenge has no %q phase", name)).
		WithDetail("challengeId", ch.ID).
		WithDetail("scorecardType", scorecardType)
}

// ResolveResource determines which resource a review being created should
// attach to. An explicit resourceId must belong to the requester (admins
// may act for any member) and sit on the resolved phase; with no explicit
// id the requester's own roles for the scorecard type are tried in
// priority order.
func (r *Resolver) ResolveResource(ctx context.Context, lk *Lookup, actor Actor, challengeID, scorecardType, explicitResourceID string) (*clients.Resource, *clients.Phase, error) {
	phase, err := r.ResolvePhase(ctx, lk, challengeID, scorecardType)
	if err != nil {
		return nil, nil, err
	}

	resources, err := r.ChallengeResources(ctx, lk, challengeID)
	if err != nil {
		return nil, nil, err
	}

	resource, err := resolveResource(actor, resources, phase, scorecardType, explicitResourceID)
	if err != nil {
		return nil, nil, err
	}
	return resource, phase, nil
}

// resolveResource is the pure resource-selection step, separated for
// testing.
func resolveResource(actor Actor, resources []clients.Resource, phase *clients.Phase, scorecardType, explicitResourceID string) (*clients.Resource, error) {
	if explicitResourceID != "" {
		for i := range resources {
			res := &resources[i]
			if res.ID != explicitResourceID {
				continue
			}
			if res.MemberID != actor.MemberID && !actor.IsAdmin {
				return nil, codedError(CodeResourceMemberMismatch,
					"resource belongs to another member").
					WithDetail("resourceId", res.ID).
					WithDetail("memberId", actor.MemberID)
			}
			if res.PhaseID != "" && res.PhaseID != phase.ID {
				return nil, codedError(CodeResourcePhaseMismatch,
					"resource is not assigned to the review phase").
					WithDetail("resourceId", res.ID).
					WithDetail("phaseId", phase.ID)
			}
			return res, nil
		}
		return nil, codedError(CodeRecordNotFound, "resource not found on challenge").
			WithDetail("resourceId", explicitResourceID)
	}

	for _, roleName := range eligibleRolesByScorecardType[scorecardType] {
		for i := range resources {
			res := &resources[i]
			if res.MemberID != actor.MemberID {
				continue
			}
			if !strings.EqualFold(res.RoleName, roleName) {
				continue
			}
			if res.PhaseID != "" && res.PhaseID != phase.ID {
				continue
			}
			return res, nil
		}
	}

	return nil, codedError(CodeForbiddenCreateReview,
		"member holds no role eligible to create this review").
		WithDetail("memberId", actor.MemberID).
		WithDetail("scorecardType", scorecardType)
}
