package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/arenaworks/peerview/internal/config"
)

// ErrNotFound is returned when a directory reports the entity as absent.
var ErrNotFound = errors.New("not found")

// ChallengeClient reads challenge detail from the challenge service.
// Idempotent and cheap; never mutates.
type ChallengeClient struct {
	baseURL string
	client  *http.Client
}

func NewChallengeClient(cfg *config.DirectoryConfig) *ChallengeClient {
	return &ChallengeClient{
		baseURL: strings.TrimSuffix(cfg.ChallengeURL, "/"),
		client:  newHTTPClient(cfg),
	}
}

// GetChallenge fetches the challenge snapshot, including its phase list.
func (c *ChallengeClient) GetChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	var challenge Challenge
	endpoint := fmt.Sprintf("%s/v5/challenges/%s", c.baseURL, url.PathEscape(challengeID))
	if err := getJSON(ctx, c.client, endpoint, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// GetSubmission fetches a submission's ownership record. Needed to tie a
// review to its challenge and to decide submitter visibility.
func (c *ChallengeClient) GetSubmission(ctx context.Context, submissionID string) (*Submission, error) {
	var submission Submission
	endpoint := fmt.Sprintf("%s/v5/submissions/%s", c.baseURL, url.PathEscape(submissionID))
	if err := getJSON(ctx, c.client, endpoint, &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ResourceClient reads member assignments from the resource service.
type ResourceClient struct {
	baseURL string
	client  *http.Client
}

func NewResourceClient(cfg *config.DirectoryConfig) *ResourceClient {
	return &ResourceClient{
		baseURL: strings.TrimSuffix(cfg.ResourceURL, "/"),
		client:  newHTTPClient(cfg),
	}
}

// ListResources returns all resources on a challenge. Pass memberID 0 to
// list every member's assignments.
func (c *ResourceClient) ListResources(ctx context.Context, challengeID string, memberID int64) ([]Resource, error) {
	query := url.Values{"challengeId": {challengeID}}
	if memberID != 0 {
		query.Set("memberId", strconv.FormatInt(memberID, 10))
	}

	var resources []Resource
	endpoint := fmt.Sprintf("%s/v5/resources?%s", c.baseURL, query.Encode())
	if err := getJSON(ctx, c.client, endpoint, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// MemberClient reads identity profiles from the member directory.
type MemberClient struct {
	baseURL string
	client  *http.Client
}

func NewMemberClient(cfg *config.DirectoryConfig) *MemberClient {
	return &MemberClient{
		baseURL: strings.TrimSuffix(cfg.MemberURL, "/"),
		client:  newHTTPClient(cfg),
	}
}

// GetMembers bulk-resolves member profiles by numeric id. Missing members
// are simply absent from the result; callers degrade gracefully.
func (c *MemberClient) GetMembers(ctx context.Context, memberIDs []int64) (map[int64]MemberProfile, error) {
	if len(memberIDs) == 0 {
		return map[int64]MemberProfile{}, nil
	}

	ids := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	var profiles []MemberProfile
	endpoint := fmt.Sprintf("%s/v5/members?userIds=%s", c.baseURL, strings.Join(ids, ","))
	if err := getJSON(ctx, c.client, endpoint, &profiles); err != nil {
		return nil, err
	}

	result := make(map[int64]MemberProfile, len(profiles))
	for _, p := range profiles {
		result[p.MemberID] = p
	}
	return result, nil
}
