package services

import (
	"testing"
	"time"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
)

func TestBuildReviewCompletedEvent(t *testing.T) {
	reviewDate := time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)
	review := &models.Review{
		ID:           "rev1",
		ChallengeID:  "ch1",
		SubmissionID: "sub1",
		PhaseID:      "p-review",
		ScorecardID:  "sc1",
		ResourceID:   "r-owner",
		Status:       models.ReviewStatusCompleted,
		InitialScore: score(86),
		ReviewDate:   &reviewDate,
	}
	reviewer := &clients.Resource{ID: "r-owner", MemberID: 100, MemberHandle: "wcheung"}
	submission := &clients.Submission{ID: "sub1", ChallengeID: "ch1", MemberID: 400}
	profiles := map[int64]clients.MemberProfile{
		100: {MemberID: 100, Handle: "wcheung"},
		400: {MemberID: 400, Handle: "hungd"},
	}

	event := BuildReviewCompletedEvent(review, reviewer, submission, profiles)

	if event.ReviewID != "rev1" || event.ChallengeID != "ch1" || event.SubmissionID != "sub1" {
		t.Errorf("identifier fields wrong: %+v", event)
	}
	if event.ReviewerMemberID != 100 || event.ReviewerHandle != "wcheung" {
		t.Errorf("reviewer fields wrong: %+v", event)
	}
	if event.SubmitterMemberID != 400 || event.SubmitterHandle != "hungd" {
		t.Errorf("submitter fields wrong: %+v", event)
	}
	if event.CompletedAt != "2026-05-10T14:30:00Z" {
		t.Errorf("CompletedAt = %q, want the review date", event.CompletedAt)
	}
	if event.InitialScore == nil || *event.InitialScore != 86 {
		t.Errorf("InitialScore = %v, want 86", event.InitialScore)
	}
}

func TestBuildReviewCompletedEvent_FallsBackToUpdatedAt(t *testing.T) {
	updatedAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	review := &models.Review{
		ID:        "rev1",
		UpdatedAt: updatedAt,
	}

	event := BuildReviewCompletedEvent(review, nil, nil, nil)
	if event.CompletedAt != "2026-06-01T09:00:00Z" {
		t.Errorf("CompletedAt = %q, want updatedAt fallback", event.CompletedAt)
	}
	if event.ReviewerMemberID != 0 || event.SubmitterHandle != "" {
		t.Errorf("identity fields should stay empty without directory data: %+v", event)
	}
}

func TestBuildReviewCompletedEvent_ProfileOverridesResourceHandle(t *testing.T) {
	review := &models.Review{ID: "rev1"}
	reviewer := &clients.Resource{ID: "r-owner", MemberID: 100, MemberHandle: "stale-handle"}
	profiles := map[int64]clients.MemberProfile{
		100: {MemberID: 100, Handle: "fresh-handle"},
	}

	event := BuildReviewCompletedEvent(review, reviewer, nil, profiles)
	if event.ReviewerHandle != "fresh-handle" {
		t.Errorf("ReviewerHandle = %q, want the member directory handle", event.ReviewerHandle)
	}
}

func TestLogBusPublish(t *testing.T) {
	bus := NewLogBus()
	if err := bus.Publish(TopicReviewCompleted, ReviewCompletedEvent{ReviewID: "rev1"}); err != nil {
		t.Errorf("log bus publish should never fail, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("log bus close should never fail, got %v", err)
	}
}
