package clients

// Snapshot types for the external platform directories. All of them are
// read-only here: the challenge service owns challenges and phases, the
// resource service owns member assignments, the member directory owns
// profiles. Each value is an immutable per-request snapshot.

// Challenge statuses as reported by the challenge service.
const (
	ChallengeStatusActive    = "ACTIVE"
	ChallengeStatusCompleted = "COMPLETED"
)

type Challenge struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Type   string  `json:"type"`
	Legacy bool    `json:"legacy"`
	Phases []Phase `json:"phases"`
}

type Phase struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsOpen bool   `json:"isOpen"`
}

func (c *Challenge) IsCompleted() bool {
	return c.Status == ChallengeStatusCompleted
}

// PhaseByName returns the first phase with the given name, or nil.
func (c *Challenge) PhaseByName(name string) *Phase {
	for i := range c.Phases {
		if c.Phases[i].Name == name {
			return &c.Phases[i]
		}
	}
	return nil
}

// PhaseByID returns the phase with the given id, or nil.
func (c *Challenge) PhaseByID(id string) *Phase {
	for i := range c.Phases {
		if c.Phases[i].ID == id {
			return &c.Phases[i]
		}
	}
	return nil
}

// Resource is a member's assignment to a challenge in a specific role
// (Reviewer, Screener, Copilot, Submitter, ...). PhaseID is set for
// phase-bound roles such as Iterative Reviewer.
type Resource struct {
	ID           string `json:"id"`
	ChallengeID  string `json:"challengeId"`
	MemberID     int64  `json:"memberId"`
	MemberHandle string `json:"memberHandle"`
	RoleID       string `json:"roleId"`
	RoleName     string `json:"roleName"`
	PhaseID      string `json:"phaseId,omitempty"`
}

// Submission links a review to its challenge and submitting member.
type Submission struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challengeId"`
	MemberID    int64  `json:"memberId"`
}

// MemberProfile is the member directory's public identity record.
type MemberProfile struct {
	MemberID  int64  `json:"userId"`
	Handle    string `json:"handle"`
	MaxRating *int   `json:"maxRating,omitempty"`
}
