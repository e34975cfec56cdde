package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeMemberDir struct{}

func (fakeMemberDir) GetMembers(_ context.Context, _ []int64) (map[int64]clients.MemberProfile, error) {
	return map[int64]clients.MemberProfile{}, nil
}

type fakeSubmissionDir struct {
	subs map[string]*clients.Submission
}

func (f *fakeSubmissionDir) GetSubmission(_ context.Context, id string) (*clients.Submission, error) {
	if sub, ok := f.subs[id]; ok {
		return sub, nil
	}
	return nil, clients.ErrNotFound
}

type downChallengeDir struct{}

func (downChallengeDir) GetChallenge(_ context.Context, _ string) (*clients.Challenge, error) {
	return nil, errors.New("challenge directory unavailable")
}

type downResourceDir struct{}

func (downResourceDir) ListResources(_ context.Context, _ string, _ int64) ([]clients.Resource, error) {
	return nil, errors.New("resource directory unavailable")
}

// newServiceDB opens a private in-memory database for one test.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Scorecard{},
		&models.ScorecardGroup{},
		&models.ScorecardSection{},
		&models.ScorecardQuestion{},
		&models.Review{},
		&models.ReviewItem{},
		&models.ReviewItemComment{},
		&models.AuditEntry{},
	); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func seedReviewScorecard(t *testing.T, db *gorm.DB) {
	t.Helper()
	scorecard := &models.Scorecard{
		ID:       "sc1",
		Name:     "Review Scorecard",
		Type:     models.ScorecardTypeReview,
		MinScore: 0,
		MaxScore: 100,
		Groups: []models.ScorecardGroup{{
			ID: "g1", ScorecardID: "sc1", Weight: 100,
			Sections: []models.ScorecardSection{{
				ID: "s1", GroupID: "g1", Weight: 100,
				Questions: []models.ScorecardQuestion{
					{ID: "q1", SectionID: "s1", Type: models.QuestionTypeScale, Weight: 60, ScaleMin: 0, ScaleMax: 4},
					{ID: "q2", SectionID: "s1", Type: models.QuestionTypeScale, Weight: 40, ScaleMin: 0, ScaleMax: 4},
				},
			}},
		}},
	}
	if err := db.Create(scorecard).Error; err != nil {
		t.Fatalf("seed scorecard: %v", err)
	}
}

func newReviewService(db *gorm.DB, challenges ChallengeDirectory, resources ResourceDirectory) *ReviewService {
	return NewReviewService(
		db,
		NewScorecardService(db),
		NewResolver(challenges, resources),
		fakeMemberDir{},
		&fakeSubmissionDir{subs: map[string]*clients.Submission{
			"sub1": {ID: "sub1", ChallengeID: "ch1", MemberID: 400},
		}},
		NewAuditService(db, 30),
		NewLogBus(),
	)
}

func reviewServiceFixture(t *testing.T) (*ReviewService, *gorm.DB) {
	t.Helper()
	db := newServiceDB(t)
	seedReviewScorecard(t, db)
	challenges := &fakeChallengeDir{challenge: timelineChallenge()}
	resources := &fakeResourceDir{resources: []clients.Resource{
		{ID: "r1", ChallengeID: "ch1", MemberID: 100, RoleName: "Reviewer"},
	}}
	return newReviewService(db, challenges, resources), db
}

func TestCreateReview_DuplicateRejected(t *testing.T) {
	svc, _ := reviewServiceFixture(t)
	ctx := context.Background()
	actor := Actor{MemberID: 100}

	req := &CreateReviewRequest{SubmissionID: "sub1", ScorecardID: "sc1"}
	if _, err := svc.Create(ctx, actor, req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Same (submission, scorecard, resource) again
	_, err := svc.Create(ctx, actor, req)
	if code := appCode(t, err); code != CodeReviewAlreadyExists {
		t.Errorf("code = %q, want %q", code, CodeReviewAlreadyExists)
	}

	var count int64
	svc.db.Model(&models.Review{}).Count(&count)
	if count != 1 {
		t.Errorf("reviews persisted = %d, want 1", count)
	}
}

func TestUpdateItem_QuestionCollisionRejected(t *testing.T) {
	svc, _ := reviewServiceFixture(t)
	ctx := context.Background()
	actor := Actor{MemberID: 100}

	review, err := svc.Create(ctx, actor, &CreateReviewRequest{
		SubmissionID: "sub1",
		ScorecardID:  "sc1",
		Items: []CreateReviewItemRequest{
			{ScorecardQuestionID: "q1", InitialAnswer: "4"},
			{ScorecardQuestionID: "q2", InitialAnswer: "2"},
		},
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	item := review.ItemByQuestion("q2")
	if item == nil {
		t.Fatal("created review is missing the q2 item")
	}

	// Re-pointing the q2 item at q1 would leave two items answering the
	// same question
	target := "q1"
	_, err = svc.UpdateItem(ctx, actor, item.ID, &UpdateReviewItemRequest{ScorecardQuestionID: &target})
	if code := appCode(t, err); code != "BAD_REQUEST" {
		t.Errorf("code = %q, want BAD_REQUEST", code)
	}

	// The rejected change must not have persisted
	var items []models.ReviewItem
	svc.db.Where("review_id = ? AND scorecard_question_id = ?", review.ID, "q1").Find(&items)
	if len(items) != 1 {
		t.Errorf("items answering q1 = %d, want 1", len(items))
	}
}

func TestUpdateReview_EarlyChecksNeedNoDirectories(t *testing.T) {
	svc, db := reviewServiceFixture(t)
	ctx := context.Background()

	review, err := svc.Create(ctx, Actor{MemberID: 100}, &CreateReviewRequest{
		SubmissionID: "sub1",
		ScorecardID:  "sc1",
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	// Same store, but both directories unreachable
	broken := newReviewService(db, downChallengeDir{}, downResourceDir{})

	// Immutable-field payloads are rejected before any lookup
	resourceID := "r-other"
	_, err = broken.Update(ctx, Actor{MemberID: 100}, review.ID, &UpdateReviewRequest{ResourceID: &resourceID})
	if code := appCode(t, err); code != CodeReviewUpdateImmutableFields {
		t.Errorf("code = %q, want %q", code, CodeReviewUpdateImmutableFields)
	}

	// Admins bypass the resource checks entirely, so their updates go
	// through without directory access
	metadata := `{"note":"adjusted"}`
	if _, err := broken.Update(ctx, Actor{MemberID: 1, IsAdmin: true}, review.ID, &UpdateReviewRequest{Metadata: &metadata}); err != nil {
		t.Errorf("admin update should not depend on the directories: %v", err)
	}

	// Everyone else still needs the challenge snapshot
	status := models.ReviewStatusInProgress
	if _, err := broken.Update(ctx, Actor{MemberID: 100}, review.ID, &UpdateReviewRequest{Status: &status}); err == nil {
		t.Error("non-admin update must fail while the challenge directory is down")
	}
}
