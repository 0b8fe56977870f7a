// Package moderation holds the decision core: the real-time gate that runs
// before a submission is stored, the asynchronous decision engine that
// produces the audit-trail moderation record, and the user risk estimator.
package moderation

import (
	"errors"
	"time"

	"github.com/travelie/moderation/internal/classifier"
)

// ErrNotFound is returned when a submission or record id does not exist.
var ErrNotFound = errors.New("moderation: not found")

// Status is the review state of a submission's moderation record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusAutoApproved Status = "auto-approved"
	StatusAutoRejected Status = "auto-rejected"
	StatusFlagged      Status = "flagged"
)

// Priority orders the admin review queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// FlagType categorises an automatic or manual flag.
type FlagType string

const (
	FlagSpam          FlagType = "spam"
	FlagInappropriate FlagType = "inappropriate"
	FlagFake          FlagType = "fake"
	FlagOffensive     FlagType = "offensive"
	FlagPromotional   FlagType = "promotional"
)

// FlagSource identifies who raised a flag.
type FlagSource string

const (
	SourceAI         FlagSource = "ai"
	SourceAdmin      FlagSource = "admin"
	SourceUserReport FlagSource = "user-report"
)

// Flag is one suspicion raised against a submission. Flags accumulate and
// drive priority: 2+ flags raise it to high, 3+ to urgent.
type Flag struct {
	Type       FlagType   `json:"type"`
	Confidence float64    `json:"confidence"`
	Source     FlagSource `json:"source"`
	FlaggedAt  time.Time  `json:"flagged_at"`
}

// Submission is one user-authored reply under moderation. The text is
// immutable once classified; only moderation annotations change.
type Submission struct {
	ID        string
	AuthorID  string
	ThreadID  string
	Text      string
	CreatedAt time.Time
}

// ModerationRecord is the append-only audit entry for one submission. It is
// created on first classification and mutated by admin review or automatic
// re-evaluation, never destroyed.
type ModerationRecord struct {
	ID             string
	SubmissionID   string
	AuthorID       string
	Classification classifier.Result
	ContentRisk    int
	UserRisk       int
	Status         Status
	Priority       Priority
	Flags          []Flag
	AutoModerated  bool
	Reason         string
	ReviewedBy     string
	ReviewedAt     *time.Time
	AdminNotes     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GateAction is the verdict of the real-time pre-persist check.
type GateAction string

const (
	ActionAllow GateAction = "allow"
	ActionFlag  GateAction = "flag"
	ActionBlock GateAction = "block"
)

// GateResult is what the real-time gate returns to the submission path.
// Classification is nil when the gate failed open.
type GateResult struct {
	Action         GateAction
	Reason         string
	Classification *classifier.Result
}

// GateCheck is the persisted snapshot of one gate evaluation, kept for the
// spam dashboard even when the submission itself is blocked.
type GateCheck struct {
	ID             string
	AuthorID       string
	ThreadID       string
	Text           string
	Action         GateAction
	Reason         string
	Classification classifier.Result
	CreatedAt      time.Time
}
