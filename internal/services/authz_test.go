package services

import (
	"testing"

	"github.com/arenaworks/peerview/internal/clients"
)

func activeChallenge() *clients.Challenge {
	return &clients.Challenge{ID: "ch1", Status: clients.ChallengeStatusActive}
}

func completedChallenge() *clients.Challenge {
	return &clients.Challenge{ID: "ch1", Status: clients.ChallengeStatusCompleted}
}

func TestDecideReviewUpdate(t *testing.T) {
	resources := []clients.Resource{
		{ID: "r-owner", ChallengeID: "ch1", MemberID: 100, RoleName: "Reviewer"},
		{ID: "r-copilot", ChallengeID: "ch1", MemberID: 200, RoleName: "Copilot"},
		{ID: "r-other", ChallengeID: "ch1", MemberID: 300, RoleName: "Reviewer"},
	}

	tests := []struct {
		name      string
		actor     Actor
		challenge *clients.Challenge
		mut       ReviewMutation
		wantAllow bool
		wantCode  string
	}{
		{
			name:      "owner may update",
			actor:     Actor{MemberID: 100},
			challenge: activeChallenge(),
			wantAllow: true,
		},
		{
			name:      "immutable fields rejected for everyone",
			actor:     Actor{MemberID: 1, IsAdmin: true},
			challenge: activeChallenge(),
			mut:       ReviewMutation{TouchesImmutable: true},
			wantCode:  CodeReviewUpdateImmutableFields,
		},
		{
			name:      "admin bypasses completed challenge",
			actor:     Actor{MemberID: 1, IsAdmin: true},
			challenge: completedChallenge(),
			wantAllow: true,
		},
		{
			name:      "non-admin blocked after challenge completed",
			actor:     Actor{MemberID: 100},
			challenge: completedChallenge(),
			wantCode:  CodeReviewUpdateForbiddenChallengeCompleted,
		},
		{
			name:      "no resource on challenge",
			actor:     Actor{MemberID: 999},
			challenge: activeChallenge(),
			wantCode:  CodeReviewUpdateForbiddenNotCopilot,
		},
		{
			name:      "copilot may transition status only",
			actor:     Actor{MemberID: 200},
			challenge: activeChallenge(),
			mut:       ReviewMutation{StatusOnly: true},
			wantAllow: true,
		},
		{
			name:      "copilot blocked from answer edits",
			actor:     Actor{MemberID: 200},
			challenge: activeChallenge(),
			wantCode:  CodeReviewUpdateForbiddenNotOwner,
		},
		{
			name:      "other reviewer blocked",
			actor:     Actor{MemberID: 300},
			challenge: activeChallenge(),
			wantCode:  CodeReviewUpdateForbiddenNotOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideReviewUpdate(tt.actor, "r-owner", tt.challenge, resources, tt.mut)
			if got.Allowed != tt.wantAllow {
				t.Fatalf("Allowed = %v, want %v (code %q)", got.Allowed, tt.wantAllow, got.Code)
			}
			if !tt.wantAllow && got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestDecideReviewDelete(t *testing.T) {
	resources := []clients.Resource{
		{ID: "r-owner", ChallengeID: "ch1", MemberID: 100, RoleName: "Reviewer"},
		{ID: "r-copilot", ChallengeID: "ch1", MemberID: 200, RoleName: "Copilot"},
	}

	tests := []struct {
		name      string
		actor     Actor
		wantAllow bool
	}{
		{"admin may delete", Actor{MemberID: 1, IsAdmin: true}, true},
		{"copilot may delete", Actor{MemberID: 200}, true},
		{"owner reviewer may not delete", Actor{MemberID: 100}, false},
		{"stranger may not delete", Actor{MemberID: 999}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideReviewDelete(tt.actor, "ch1", resources)
			if got.Allowed != tt.wantAllow {
				t.Fatalf("Allowed = %v, want %v", got.Allowed, tt.wantAllow)
			}
			if !tt.wantAllow && got.Code != CodeReviewDeleteForbiddenNotCopilot {
				t.Errorf("Code = %q, want %q", got.Code, CodeReviewDeleteForbiddenNotCopilot)
			}
		})
	}
}

func TestDecideItemMutation(t *testing.T) {
	resources := []clients.Resource{
		{ID: "r-owner", ChallengeID: "ch1", MemberID: 100, RoleName: "Reviewer"},
		{ID: "r-copilot", ChallengeID: "ch1", MemberID: 200, RoleName: "Copilot"},
		{ID: "r-other", ChallengeID: "ch1", MemberID: 300, RoleName: "Reviewer"},
	}

	tests := []struct {
		name      string
		actor     Actor
		op        ItemOp
		wantAllow bool
		wantCode  string
	}{
		{"admin allowed", Actor{MemberID: 1, IsAdmin: true}, ItemOpUpdate, true, ""},
		{"owner allowed", Actor{MemberID: 100}, ItemOpUpdate, true, ""},
		{"copilot allowed", Actor{MemberID: 200}, ItemOpUpdate, true, ""},
		{"other reviewer denied", Actor{MemberID: 300}, ItemOpUpdate, false, CodeReviewItemUpdateForbiddenNotOwner},
		{"no resource denied on update", Actor{MemberID: 999}, ItemOpUpdate, false, CodeReviewItemUpdateForbiddenNotCopilot},
		{"no resource denied on comment create", Actor{MemberID: 999}, ItemOpCreateComments, false, CodeReviewItemCreateForbiddenNotCopilot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideItemMutation(tt.actor, tt.op, "r-owner", "ch1", resources)
			if got.Allowed != tt.wantAllow {
				t.Fatalf("Allowed = %v, want %v (code %q)", got.Allowed, tt.wantAllow, got.Code)
			}
			if !tt.wantAllow && got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestDecisionErr(t *testing.T) {
	if err := Allow().Err(); err != nil {
		t.Errorf("allow decision should produce nil error, got %v", err)
	}

	err := Deny(CodeReviewDeleteForbiddenNotCopilot, "nope").
		WithDetail("challengeId", "ch1").Err()
	if err == nil {
		t.Fatal("deny decision should produce an error")
	}
}
