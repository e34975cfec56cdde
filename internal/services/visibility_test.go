package services

import (
	"testing"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
)

func score(v float64) *float64 { return &v }

func visibilityFixture() (*models.Review, *clients.Challenge, []clients.Resource, *clients.Submission) {
	review := &models.Review{
		ID:           "rev1",
		ChallengeID:  "ch1",
		SubmissionID: "sub1",
		ResourceID:   "r-owner",
		PhaseID:      "p-review",
		Status:       models.ReviewStatusCompleted,
		InitialScore: score(86),
		FinalScore:   score(86),
		Items:        []models.ReviewItem{{ID: "item1", ScorecardQuestionID: "q1", InitialAnswer: "4"}},
	}
	challenge := &clients.Challenge{
		ID:     "ch1",
		Status: clients.ChallengeStatusActive,
		Phases: []clients.Phase{
			{ID: "p-screen", Name: "Screening", IsOpen: false},
			{ID: "p-review", Name: "Review", IsOpen: true},
			{ID: "p-appeals", Name: "Appeals", IsOpen: false},
		},
	}
	resources := []clients.Resource{
		{ID: "r-owner", ChallengeID: "ch1", MemberID: 100, RoleName: "Reviewer"},
		{ID: "r-other", ChallengeID: "ch1", MemberID: 300, RoleName: "Reviewer"},
		{ID: "r-copilot", ChallengeID: "ch1", MemberID: 200, RoleName: "Copilot"},
		{ID: "r-sub", ChallengeID: "ch1", MemberID: 400, RoleName: "Submitter"},
		{ID: "r-sub2", ChallengeID: "ch1", MemberID: 500, RoleName: "Submitter"},
	}
	submission := &clients.Submission{ID: "sub1", ChallengeID: "ch1", MemberID: 400}
	return review, challenge, resources, submission
}

func TestDecideReviewView(t *testing.T) {
	review, challenge, resources, submission := visibilityFixture()

	tests := []struct {
		name     string
		actor    Actor
		wantLvl  ViewLevel
		wantCode string
		wantOwn  bool
	}{
		{name: "admin full", actor: Actor{MemberID: 1, IsAdmin: true}, wantLvl: ViewFull},
		{name: "copilot full", actor: Actor{MemberID: 200}, wantLvl: ViewFull},
		{name: "owning reviewer full", actor: Actor{MemberID: 100}, wantLvl: ViewFull},
		{name: "other reviewer masked while running", actor: Actor{MemberID: 300}, wantLvl: ViewMasked},
		{
			name:     "submitter of another submission denied",
			actor:    Actor{MemberID: 500},
			wantLvl:  ViewDenied,
			wantCode: CodeForbiddenReviewAccessReviewerSelf,
		},
		{
			name:     "own submitter denied while appeals closed",
			actor:    Actor{MemberID: 400},
			wantLvl:  ViewDenied,
			wantCode: CodeForbiddenReviewAccessPhase,
			wantOwn:  true,
		},
		{
			name:     "member without roles denied",
			actor:    Actor{MemberID: 999},
			wantLvl:  ViewDenied,
			wantCode: CodeForbiddenReviewAccessReviewerSelf,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideReviewView(tt.actor, review, challenge, resources, submission)
			if got.Level != tt.wantLvl {
				t.Fatalf("Level = %v, want %v", got.Level, tt.wantLvl)
			}
			if got.DenyCode != tt.wantCode {
				t.Errorf("DenyCode = %q, want %q", got.DenyCode, tt.wantCode)
			}
			if got.OwnSubmission != tt.wantOwn {
				t.Errorf("OwnSubmission = %v, want %v", got.OwnSubmission, tt.wantOwn)
			}
		})
	}
}

func TestDecideReviewView_ChallengeCompleted(t *testing.T) {
	review, challenge, resources, submission := visibilityFixture()
	challenge.Status = clients.ChallengeStatusCompleted

	// Other reviewers see everything once the challenge completed
	if got := DecideReviewView(Actor{MemberID: 300}, review, challenge, resources, submission); got.Level != ViewFull {
		t.Errorf("other reviewer after completion: Level = %v, want ViewFull", got.Level)
	}
	// So does the submitter of the reviewed submission
	if got := DecideReviewView(Actor{MemberID: 400}, review, challenge, resources, submission); got.Level != ViewFull {
		t.Errorf("own submitter after completion: Level = %v, want ViewFull", got.Level)
	}
	// But not a foreign submitter
	if got := DecideReviewView(Actor{MemberID: 500}, review, challenge, resources, submission); got.Level != ViewDenied {
		t.Errorf("foreign submitter after completion: Level = %v, want ViewDenied", got.Level)
	}
}

func TestDecideReviewView_AppealsOpen(t *testing.T) {
	review, challenge, resources, submission := visibilityFixture()
	for i := range challenge.Phases {
		if challenge.Phases[i].Name == "Appeals" {
			challenge.Phases[i].IsOpen = true
		}
	}

	got := DecideReviewView(Actor{MemberID: 400}, review, challenge, resources, submission)
	if got.Level != ViewFull {
		t.Errorf("own submitter with open appeals: Level = %v, want ViewFull", got.Level)
	}
	if !got.OwnSubmission {
		t.Error("OwnSubmission should be set for the submitting member")
	}
}

func TestDecideReviewView_ScreeningVisibleToGraders(t *testing.T) {
	review, challenge, resources, submission := visibilityFixture()
	review.PhaseID = "p-screen"

	got := DecideReviewView(Actor{MemberID: 300}, review, challenge, resources, submission)
	if got.Level != ViewFull {
		t.Errorf("screening review for a fellow grader: Level = %v, want ViewFull", got.Level)
	}
}

func TestDecideReviewView_NilSubmission(t *testing.T) {
	review, challenge, resources, _ := visibilityFixture()

	// Ownership unresolved: the submitter cannot be confirmed, deny
	got := DecideReviewView(Actor{MemberID: 400}, review, challenge, resources, nil)
	if got.Level != ViewDenied || got.DenyCode != CodeForbiddenReviewAccessReviewerSelf {
		t.Errorf("nil submission: got %v/%q, want denied/reviewer-self", got.Level, got.DenyCode)
	}
}

func TestSubmitterUnmasked_NoAppealsPhases(t *testing.T) {
	review, challenge, _, _ := visibilityFixture()
	challenge.Phases = []clients.Phase{
		{ID: "p-review", Name: "Review", IsOpen: true},
	}

	// Review phase still open: masked
	if submitterUnmasked(review, challenge) {
		t.Error("open review phase with no appeals should stay masked")
	}

	// A closed regular review phase without appeals stays masked until
	// the challenge itself completes
	challenge.Phases[0].IsOpen = false
	if submitterUnmasked(review, challenge) {
		t.Error("closed review phase with no appeals must stay masked on an active challenge")
	}

	// A closed Iterative Review phase is the one phase that unmasks on
	// its own when no appeals phases exist
	challenge.Phases = []clients.Phase{
		{ID: "p-iter", Name: "Iterative Review", IsOpen: false},
	}
	review.PhaseID = "p-iter"
	if !submitterUnmasked(review, challenge) {
		t.Error("closed iterative review phase with no appeals should unmask")
	}
}

func TestDecideReviewView_SubmitterMaskedOnActiveChallenge(t *testing.T) {
	review, challenge, resources, submission := visibilityFixture()
	challenge.Phases = []clients.Phase{
		{ID: "p-sub", Name: "Submission", IsOpen: false},
		{ID: "p-review", Name: "Review", IsOpen: false},
	}

	got := DecideReviewView(Actor{MemberID: 400}, review, challenge, resources, submission)
	if got.Level != ViewDenied {
		t.Fatalf("Level = %v, want ViewDenied while the challenge is still active", got.Level)
	}
	if !got.OwnSubmission {
		t.Error("OwnSubmission should be set so list queries mask instead of dropping")
	}
}

func TestSubmitterUnmasked_StaysUnmaskedAfterAppealsClose(t *testing.T) {
	review, challenge, _, _ := visibilityFixture()
	for i := range challenge.Phases {
		switch challenge.Phases[i].Name {
		case "Review":
			challenge.Phases[i].IsOpen = false
		case "Appeals":
			challenge.Phases[i].IsOpen = true
		}
	}

	if !submitterUnmasked(review, challenge) {
		t.Fatal("open appeals phase should unmask")
	}

	// The appeals phase closing while the challenge is still active must
	// not re-mask a review that was already visible
	for i := range challenge.Phases {
		if challenge.Phases[i].Name == "Appeals" {
			challenge.Phases[i].IsOpen = false
		}
	}
	if !submitterUnmasked(review, challenge) {
		t.Error("review re-masked after the appeals phase closed")
	}
}

func TestMaskReview(t *testing.T) {
	review, _, _, _ := visibilityFixture()
	review.ReviewerHandle = "wcheung"

	masked := MaskReview(review)
	if masked.InitialScore != nil || masked.FinalScore != nil {
		t.Error("masked review must not carry scores")
	}
	if len(masked.Items) != 0 {
		t.Error("masked review must not carry items")
	}
	if masked.ReviewerHandle != "wcheung" {
		t.Error("masking must keep reviewer identity")
	}
	// The original is untouched
	if review.InitialScore == nil || len(review.Items) == 0 {
		t.Error("masking must not mutate the source review")
	}
}
