// Package ban implements the graduated ban policy: violations are counted
// per user and type over a rolling 30-day window, and counts map onto
// escalating ban severities. At most one effective active ban exists per
// (user, ban type) at any time; a new qualifying violation extends or
// upgrades the existing ban rather than creating a second one.
package ban

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a violation or ban id does not exist.
	ErrNotFound = errors.New("ban: not found")

	// ErrAlreadyLifted is returned when lifting a ban that is no longer active.
	ErrAlreadyLifted = errors.New("ban: already lifted")
)

// ViolationType categorises the policy breach. Escalation speed is tuned per
// family: toxic violations escalate faster than spam.
type ViolationType string

const (
	ViolationSpam          ViolationType = "spam"
	ViolationToxic         ViolationType = "toxic"
	ViolationInappropriate ViolationType = "inappropriate"
	ViolationHateSpeech    ViolationType = "hate_speech"
	ViolationHarassment    ViolationType = "harassment"
)

// ViolationSeverity grades a single violation.
type ViolationSeverity string

const (
	SeverityLow      ViolationSeverity = "low"
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

// ReviewStatus tracks the admin review of a violation. Only pending and
// confirmed violations count toward the escalation window.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewDismissed ReviewStatus = "dismissed"
	ReviewAppealed  ReviewStatus = "appealed"
)

// Violation is one confirmed-or-pending policy breach attributed to a user.
type Violation struct {
	ID            string
	UserID        string
	SubmissionID  string
	ViolationType ViolationType
	Severity      ViolationSeverity
	Confidence    float64
	ReviewStatus  ReviewStatus
	ReviewedBy    string
	ReviewNotes   string
	ReviewedAt    *time.Time
	CreatedAt     time.Time
}

// BanType identifies what the ban restricts.
type BanType string

const (
	BanReply   BanType = "reply_ban"
	BanComment BanType = "comment_ban"
	BanFull    BanType = "full_ban"
	BanShadow  BanType = "shadow_ban"
)

// BanSeverity distinguishes warnings, time-bounded bans, and permanent bans.
type BanSeverity string

const (
	BanWarning   BanSeverity = "warning"
	BanTemporary BanSeverity = "temporary"
	BanPermanent BanSeverity = "permanent"
)

// IssuedBy records whether the threshold engine or an admin created the ban.
type IssuedBy string

const (
	IssuedAuto   IssuedBy = "auto"
	IssuedManual IssuedBy = "manual"
)

// AppealStatus tracks the appeal lifecycle of a ban.
type AppealStatus string

const (
	AppealNone     AppealStatus = "none"
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealRejected AppealStatus = "rejected"
)

// Ban is a time-bounded or permanent restriction on a user.
// EndDate is derived as StartDate + DurationHours and is nil for permanent
// bans. DurationHours is meaningful only for temporary bans.
type Ban struct {
	ID            string
	UserID        string
	BanType       BanType
	Severity      BanSeverity
	Reason        string
	DurationHours int
	StartDate     time.Time
	EndDate       *time.Time
	IsActive      bool
	IssuedBy      IssuedBy
	BannedBy      string // admin id for manual bans, empty for auto
	AppealStatus  AppealStatus
	AppealNotes   string
	ReviewedBy    string
	ReviewedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether a temporary ban's end date has passed.
// Permanent bans never expire.
func (b *Ban) Expired(now time.Time) bool {
	if b.Severity == BanPermanent || b.EndDate == nil {
		return false
	}
	return now.After(*b.EndDate)
}

// Remaining returns how long the ban has left, or zero for permanent and
// expired bans.
func (b *Ban) Remaining(now time.Time) time.Duration {
	if b.Severity == BanPermanent || b.EndDate == nil {
		return 0
	}
	if now.After(*b.EndDate) {
		return 0
	}
	return b.EndDate.Sub(now)
}
