package services

import (
	"strings"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
)

// RoleKind is the closed set of capabilities a resource can grant on a
// challenge. Role names from the resource service are mapped once at the
// boundary; everything downstream switches exhaustively on the kind so an
// unmatched role is RoleUnknown, never a silently-passing substring match.
type RoleKind int

const (
	RoleUnknown RoleKind = iota
	RoleReviewer
	RoleScreener
	RoleCopilot
	RoleSubmitter
	RoleManager
	RoleObserver
)

func (k RoleKind) String() string {
	switch k {
	case RoleReviewer:
		return "reviewer"
	case RoleScreener:
		return "screener"
	case RoleCopilot:
		return "copilot"
	case RoleSubmitter:
		return "submitter"
	case RoleManager:
		return "manager"
	case RoleObserver:
		return "observer"
	default:
		return "unknown"
	}
}

// roleKindByName maps the resource service's canonical role names.
var roleKindByName = map[string]RoleKind{
	"reviewer":            RoleReviewer,
	"iterative reviewer":  RoleReviewer,
	"checkpoint reviewer": RoleReviewer,
	"approver":            RoleReviewer,
	"screener":            RoleScreener,
	"primary screener":    RoleScreener,
	"checkpoint screener": RoleScreener,
	"copilot":             RoleCopilot,
	"submitter":           RoleSubmitter,
	"manager":             RoleManager,
	"observer":            RoleObserver,
}

// RoleKindOf resolves a resource role name to its capability kind.
func RoleKindOf(roleName string) RoleKind {
	if kind, ok := roleKindByName[strings.ToLower(strings.TrimSpace(roleName))]; ok {
		return kind
	}
	return RoleUnknown
}

// CanGrade reports whether the kind may author review scores.
func (k RoleKind) CanGrade() bool {
	return k == RoleReviewer || k == RoleScreener
}

// eligibleRolesByScorecardType lists the role names, in priority order,
// that may create a review for a given scorecard type.
var eligibleRolesByScorecardType = map[string][]string{
	models.ScorecardTypeReview:              {"Reviewer"},
	models.ScorecardTypeIterativeReview:     {"Iterative Reviewer", "Reviewer"},
	models.ScorecardTypeScreening:           {"Primary Screener", "Screener"},
	models.ScorecardTypeCheckpointScreening: {"Checkpoint Screener", "Screener"},
	models.ScorecardTypeCheckpointReview:    {"Checkpoint Reviewer", "Reviewer"},
	models.ScorecardTypeApproval:            {"Approver"},
}

// hasCopilotResource reports whether any of the member's resources grants
// copilot capability.
func hasCopilotResource(memberID int64, resources []clients.Resource) bool {
	for _, r := range resources {
		if r.MemberID == memberID && RoleKindOf(r.RoleName) == RoleCopilot {
			return true
		}
	}
	return false
}

// ownsResource reports whether resourceID belongs to the member within the
// given resource list.
func ownsResource(memberID int64, resourceID string, resources []clients.Resource) bool {
	for _, r := range resources {
		if r.ID == resourceID && r.MemberID == memberID {
			return true
		}
	}
	return false
}

// memberResources filters the challenge resource list down to one member.
func memberResources(memberID int64, resources []clients.Resource) []clients.Resource {
	var out []clients.Resource
	for _, r := range resources {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	return out
}
