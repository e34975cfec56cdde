package services

import (
	"encoding/json"
	"time"

	"github.com/arenaworks/peerview/internal/clients"
	"github.com/arenaworks/peerview/internal/config"
	"github.com/arenaworks/peerview/internal/models"
	"github.com/arenaworks/peerview/pkg/logger"
	"github.com/hibiken/asynq"
)

// TopicReviewCompleted is the single well-known completion topic.
const TopicReviewCompleted = "review:completed"

// ReviewCompletedEvent is published exactly once per transition into
// COMPLETED status, at-least-once delivery, no acknowledgment expected.
type ReviewCompletedEvent struct {
	ReviewID           string   `json:"review_id"`
	ChallengeID        string   `json:"challenge_id"`
	SubmissionID       string   `json:"submission_id"`
	PhaseID            string   `json:"phase_id"`
	ScorecardID        string   `json:"scorecard_id"`
	ReviewerResourceID string   `json:"reviewer_resource_id"`
	ReviewerHandle     string   `json:"reviewer_handle,omitempty"`
	ReviewerMemberID   int64    `json:"reviewer_member_id,omitempty"`
	SubmitterHandle    string   `json:"submitter_handle,omitempty"`
	SubmitterMemberID  int64    `json:"submitter_member_id,omitempty"`
	InitialScore       *float64 `json:"initial_score"`
	CompletedAt        string   `json:"completed_at"` // ISO-8601
}

// BuildReviewCompletedEvent assembles the completion payload. The
// timestamp is the review's reviewDate, falling back to updatedAt.
// Reviewer and submitter identity fields stay empty when the directories
// could not resolve them.
func BuildReviewCompletedEvent(review *models.Review, reviewer *clients.Resource, submission *clients.Submission, profiles map[int64]clients.MemberProfile) ReviewCompletedEvent {
	completedAt := review.UpdatedAt
	if review.ReviewDate != nil {
		completedAt = *review.ReviewDate
	}

	event := ReviewCompletedEvent{
		ReviewID:           review.ID,
		ChallengeID:        review.ChallengeID,
		SubmissionID:       review.SubmissionID,
		PhaseID:            review.PhaseID,
		ScorecardID:        review.ScorecardID,
		ReviewerResourceID: review.ResourceID,
		InitialScore:       review.InitialScore,
		CompletedAt:        completedAt.UTC().Format(time.RFC3339),
	}

	if reviewer != nil {
		event.ReviewerMemberID = reviewer.MemberID
		event.ReviewerHandle = reviewer.MemberHandle
		if profile, ok := profiles[reviewer.MemberID]; ok && profile.Handle != "" {
			event.ReviewerHandle = profile.Handle
		}
	}
	if submission != nil {
		event.SubmitterMemberID = submission.MemberID
		if profile, ok := profiles[submission.MemberID]; ok {
			event.SubmitterHandle = profile.Handle
		}
	}
	return event
}

// EventBus publishes engine events. Publish failures are logged by the
// caller and never roll back the triggering mutation.
type EventBus interface {
	Publish(topic string, payload interface{}) error
	Close() error
}

// InitEventBus returns the Redis-backed bus when enabled and reachable,
// falling back to the log-only bus.
func InitEventBus(cfg *config.Config) EventBus {
	if cfg.Redis.Enabled {
		bus, err := NewAsynqBus(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to log-only event bus")
			return NewLogBus()
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("event bus initialized")
		return bus
	}
	logger.Info().Msg("log-only event bus initialized (redis disabled)")
	return NewLogBus()
}

// AsynqBus publishes events as asynq tasks on a Redis queue.
type AsynqBus struct {
	client *asynq.Client
}

func NewAsynqBus(cfg *config.RedisConfig) (*AsynqBus, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection up front so a misconfigured Redis fails at
	// boot, not on the first completed review.
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsynqBus{client: client}, nil
}

func (b *AsynqBus) Publish(topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(topic, body)
	info, err := b.client.Enqueue(task, asynq.Queue("events"), asynq.MaxRetry(3))
	if err != nil {
		return err
	}
	logger.Debug().Str("topic", topic).Str("task_id", info.ID).Msg("event published")
	return nil
}

func (b *AsynqBus) Close() error {
	return b.client.Close()
}

// LogBus is the degraded publisher used when Redis is disabled: events are
// written to the log so local runs still show completion signals.
type LogBus struct{}

func NewLogBus() *LogBus {
	return &LogBus{}
}

func (b *LogBus) Publish(topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	logger.Info().Str("topic", topic).RawJSON("payload", body).Msg("event (log-only)")
	return nil
}

func (b *LogBus) Close() error {
	return nil
}
