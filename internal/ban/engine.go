package ban

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/travelie/moderation/internal/metrics"
)

// Store is the persistence contract the engine needs. The Postgres
// implementation lives in store.go; tests substitute an in-memory fake.
type Store interface {
	CreateViolation(ctx context.Context, v *Violation) error
	GetViolation(ctx context.Context, id string) (*Violation, error)
	UpdateViolation(ctx context.Context, v *Violation) error
	CountRecentViolations(ctx context.Context, userID string, vtype ViolationType, since time.Time) (int, error)
	ViolationsByUser(ctx context.Context, userID string, limit int) ([]*Violation, error)

	CreateBan(ctx context.Context, b *Ban) error
	GetBan(ctx context.Context, id string) (*Ban, error)
	UpdateBan(ctx context.Context, b *Ban) error
	ActiveBan(ctx context.Context, userID string, types []BanType) (*Ban, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	BansByUser(ctx context.Context, userID string, limit int) ([]*Ban, error)
	ActiveBans(ctx context.Context, offset, limit int) ([]*Ban, error)
}

// Notifier receives policy events after they are persisted. Implementations
// publish them to NATS for the admin dashboard and the banned user.
type Notifier interface {
	ViolationRecorded(v *Violation)
	BanIssued(b *Ban)
}

// Engine applies the graduated ban policy. The check-existing-then
// create-or-upgrade sequence for one user is serialized through a per-user
// mutex so concurrent violation recordings cannot create two active bans of
// the same type; a partial unique index in Postgres backs the invariant.
type Engine struct {
	store    Store
	cache    *Cache // optional fast path for IsUserBanned
	notifier Notifier

	now func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewEngine creates a ban policy engine. cache and notifier may be nil.
func NewEngine(store Store, cache *Cache, notifier Notifier) *Engine {
	return &Engine{
		store:     store,
		cache:     cache,
		notifier:  notifier,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// lockUser returns the mutex serializing ban decisions for one user.
func (e *Engine) lockUser(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// RecordViolation persists a violation and runs the escalation check for its
// (user, type) pair. The returned violation has its id and defaults filled
// in.
func (e *Engine) RecordViolation(ctx context.Context, v *Violation) (*Violation, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.ReviewStatus == "" {
		v.ReviewStatus = ReviewPending
	}
	if v.Severity == "" {
		v.Severity = SeverityMedium
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = e.now()
	}

	if err := e.store.CreateViolation(ctx, v); err != nil {
		return nil, fmt.Errorf("ban: record violation: %w", err)
	}
	if e.notifier != nil {
		e.notifier.ViolationRecorded(v)
	}

	if err := e.checkAndApplyBan(ctx, v.UserID, v.ViolationType); err != nil {
		return nil, err
	}
	return v, nil
}

// checkAndApplyBan counts in-window violations for (user, type) and creates
// or upgrades a ban according to the escalation table.
func (e *Engine) checkAndApplyBan(ctx context.Context, userID string, vtype ViolationType) error {
	l := e.lockUser(userID)
	l.Lock()
	defer l.Unlock()

	now := e.now()
	count, err := e.store.CountRecentViolations(ctx, userID, vtype, now.Add(-ViolationWindow))
	if err != nil {
		return fmt.Errorf("ban: count violations: %w", err)
	}

	existing, err := e.store.ActiveBan(ctx, userID, []BanType{BanReply, BanFull})
	if err != nil {
		return fmt.Errorf("ban: lookup active ban: %w", err)
	}
	if existing != nil && existing.Expired(now) {
		existing.IsActive = false
		existing.UpdatedAt = now
		if err := e.store.UpdateBan(ctx, existing); err != nil {
			return fmt.Errorf("ban: deactivate expired ban: %w", err)
		}
		existing = nil
	}

	rule, ok := applicableRule(vtype, count)

	if existing != nil {
		// Never create a second concurrent ban. Upgrade in place when the
		// new count reaches a permanent rule and the current ban is not
		// permanent yet.
		if ok && rule.Severity == BanPermanent && existing.Severity != BanPermanent {
			existing.Severity = BanPermanent
			existing.DurationHours = 0
			existing.EndDate = nil
			existing.Reason += fmt.Sprintf(" | Upgraded to permanent due to %d violations", count)
			existing.UpdatedAt = now
			if err := e.store.UpdateBan(ctx, existing); err != nil {
				return fmt.Errorf("ban: upgrade ban: %w", err)
			}
			e.cacheSet(ctx, existing)
			log.Printf("[ban] user=%s ban upgraded to permanent (%s count=%d)", userID, vtype, count)
			if e.notifier != nil {
				e.notifier.BanIssued(existing)
			}
		}
		return nil
	}

	if !ok {
		return nil
	}

	b := &Ban{
		ID:            uuid.NewString(),
		UserID:        userID,
		BanType:       BanReply,
		Severity:      rule.Severity,
		Reason:        fmt.Sprintf("Automatic ban due to %d %s violations", count, vtype),
		DurationHours: rule.DurationHours,
		StartDate:     now,
		IsActive:      true,
		IssuedBy:      IssuedAuto,
		AppealStatus:  AppealNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rule.Severity == BanTemporary {
		end := now.Add(time.Duration(rule.DurationHours) * time.Hour)
		b.EndDate = &end
	}

	if err := e.store.CreateBan(ctx, b); err != nil {
		return fmt.Errorf("ban: create ban: %w", err)
	}
	metrics.BansTotal.WithLabelValues(string(b.Severity)).Inc()
	e.cacheSet(ctx, b)
	log.Printf("[ban] user=%s banned for %s (count=%d severity=%s duration=%dh)",
		userID, vtype, count, b.Severity, b.DurationHours)
	if e.notifier != nil {
		e.notifier.BanIssued(b)
	}
	return nil
}

// IsUserBanned returns the user's effective active ban of the given type, or
// nil. For reply bans an active full ban also counts. Expiry is evaluated
// lazily here: a ban whose end date has passed is deactivated on read even
// if the sweep has not run yet.
func (e *Engine) IsUserBanned(ctx context.Context, userID string, banType BanType) (*Ban, error) {
	now := e.now()

	if e.cache != nil {
		if b, err := e.cache.Get(ctx, userID, banType); err == nil && b != nil && !b.Expired(now) {
			return b, nil
		}
	}

	types := []BanType{banType}
	if banType != BanFull {
		types = append(types, BanFull)
	}

	b, err := e.store.ActiveBan(ctx, userID, types)
	if err != nil {
		return nil, fmt.Errorf("ban: lookup active ban: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	if b.Expired(now) {
		b.IsActive = false
		b.UpdatedAt = now
		if err := e.store.UpdateBan(ctx, b); err != nil {
			return nil, fmt.Errorf("ban: deactivate expired ban: %w", err)
		}
		e.cacheDel(ctx, userID, b.BanType)
		return nil, nil
	}

	e.cacheSet(ctx, b)
	return b, nil
}

// ReviewViolation confirms or dismisses a violation. Dismissed violations
// stop counting toward escalation.
func (e *Engine) ReviewViolation(ctx context.Context, violationID, action, reviewedBy, notes string) (*Violation, error) {
	v, err := e.store.GetViolation(ctx, violationID)
	if err != nil {
		return nil, err
	}

	switch action {
	case "confirm":
		v.ReviewStatus = ReviewConfirmed
	case "dismiss":
		v.ReviewStatus = ReviewDismissed
	default:
		return nil, fmt.Errorf("ban: invalid review action %q", action)
	}

	now := e.now()
	v.ReviewedBy = reviewedBy
	v.ReviewNotes = notes
	v.ReviewedAt = &now

	if err := e.store.UpdateViolation(ctx, v); err != nil {
		return nil, fmt.Errorf("ban: update violation: %w", err)
	}
	return v, nil
}

// ManualBan issues an admin ban. Manual bans bypass the threshold table and
// are always permanent until explicitly lifted. If a ban of the same type is
// already active it is converted in place rather than duplicated.
func (e *Engine) ManualBan(ctx context.Context, userID string, banType BanType, reason, adminID string) (*Ban, error) {
	l := e.lockUser(userID)
	l.Lock()
	defer l.Unlock()

	now := e.now()

	existing, err := e.store.ActiveBan(ctx, userID, []BanType{banType})
	if err != nil {
		return nil, fmt.Errorf("ban: lookup active ban: %w", err)
	}
	if existing != nil && !existing.Expired(now) {
		existing.Severity = BanPermanent
		existing.DurationHours = 0
		existing.EndDate = nil
		existing.Reason = reason
		existing.IssuedBy = IssuedManual
		existing.BannedBy = adminID
		existing.UpdatedAt = now
		if err := e.store.UpdateBan(ctx, existing); err != nil {
			return nil, fmt.Errorf("ban: convert to manual ban: %w", err)
		}
		e.cacheSet(ctx, existing)
		if e.notifier != nil {
			e.notifier.BanIssued(existing)
		}
		return existing, nil
	}

	b := &Ban{
		ID:           uuid.NewString(),
		UserID:       userID,
		BanType:      banType,
		Severity:     BanPermanent,
		Reason:       reason,
		StartDate:    now,
		IsActive:     true,
		IssuedBy:     IssuedManual,
		BannedBy:     adminID,
		AppealStatus: AppealNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateBan(ctx, b); err != nil {
		return nil, fmt.Errorf("ban: create manual ban: %w", err)
	}
	e.cacheSet(ctx, b)
	log.Printf("[ban] user=%s manually banned by admin=%s type=%s", userID, adminID, banType)
	if e.notifier != nil {
		e.notifier.BanIssued(b)
	}
	return b, nil
}

// LiftBan deactivates a ban and records the appeal outcome. A reason is
// required.
func (e *Engine) LiftBan(ctx context.Context, banID, reason, adminID string) (*Ban, error) {
	if reason == "" {
		return nil, fmt.Errorf("ban: lift reason is required")
	}

	b, err := e.store.GetBan(ctx, banID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrAlreadyLifted
	}

	now := e.now()
	b.IsActive = false
	b.AppealStatus = AppealApproved
	b.AppealNotes = reason
	b.ReviewedBy = adminID
	b.ReviewedAt = &now
	b.UpdatedAt = now

	if err := e.store.UpdateBan(ctx, b); err != nil {
		return nil, fmt.Errorf("ban: lift ban: %w", err)
	}
	e.cacheDel(ctx, b.UserID, b.BanType)
	log.Printf("[ban] ban=%s for user=%s lifted by admin=%s", banID, b.UserID, adminID)
	return b, nil
}

// SweepExpired bulk-deactivates all temporary bans whose end date has
// passed. IsUserBanned already expires bans lazily on read; the sweep keeps
// the admin listings honest.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	n, err := e.store.DeactivateExpired(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("ban: sweep expired: %w", err)
	}
	if n > 0 {
		log.Printf("[ban] sweep deactivated %d expired bans", n)
	}
	return n, nil
}

// UserViolations lists a user's violations, most recent first.
func (e *Engine) UserViolations(ctx context.Context, userID string, limit int) ([]*Violation, error) {
	return e.store.ViolationsByUser(ctx, userID, limit)
}

// UserBans lists a user's bans, most recent first.
func (e *Engine) UserBans(ctx context.Context, userID string, limit int) ([]*Ban, error) {
	return e.store.BansByUser(ctx, userID, limit)
}

// ActiveBans pages through currently active bans for the admin surface.
func (e *Engine) ActiveBans(ctx context.Context, offset, limit int) ([]*Ban, error) {
	return e.store.ActiveBans(ctx, offset, limit)
}

func (e *Engine) cacheSet(ctx context.Context, b *Ban) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, b); err != nil {
		log.Printf("[ban] cache set user=%s: %v", b.UserID, err)
	}
}

func (e *Engine) cacheDel(ctx context.Context, userID string, banType BanType) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Del(ctx, userID, banType); err != nil {
		log.Printf("[ban] cache del user=%s: %v", userID, err)
	}
}
