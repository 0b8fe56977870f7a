package ban

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists violations and bans in PostgreSQL. A partial unique
// index on (user_id, ban_type) WHERE is_active backs the one-active-ban
// invariant at the storage layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateViolation inserts a violation row.
func (s *PostgresStore) CreateViolation(ctx context.Context, v *Violation) error {
	const query = `
		INSERT INTO violations (id, user_id, submission_id, violation_type, severity, confidence, review_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.UserID, v.SubmissionID, v.ViolationType, v.Severity,
		v.Confidence, v.ReviewStatus, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ban: insert violation: %w", err)
	}
	return nil
}

// GetViolation loads a violation by id.
func (s *PostgresStore) GetViolation(ctx context.Context, id string) (*Violation, error) {
	const query = `
		SELECT id, user_id, submission_id, violation_type, severity, confidence,
		       review_status, reviewed_by, review_notes, reviewed_at, created_at
		FROM violations
		WHERE id = $1`

	v, err := scanViolation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ban: get violation: %w", err)
	}
	return v, nil
}

// UpdateViolation writes back the review fields of a violation.
func (s *PostgresStore) UpdateViolation(ctx context.Context, v *Violation) error {
	const query = `
		UPDATE violations
		SET review_status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, v.ID, v.ReviewStatus, v.ReviewedBy, v.ReviewNotes, v.ReviewedAt)
	if err != nil {
		return fmt.Errorf("ban: update violation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentViolations counts a user's pending and confirmed violations of
// one type since the given time. Dismissed and appealed violations do not
// count toward escalation.
func (s *PostgresStore) CountRecentViolations(ctx context.Context, userID string, vtype ViolationType, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM violations
		WHERE user_id = $1
		  AND violation_type = $2
		  AND review_status IN ('pending', 'confirmed')
		  AND created_at >= $3`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, vtype, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ban: count violations: %w", err)
	}
	return count, nil
}

// ViolationsByUser lists a user's violations, most recent first.
func (s *PostgresStore) ViolationsByUser(ctx context.Context, userID string, limit int) ([]*Violation, error) {
	const query = `
		SELECT id, user_id, submission_id, violation_type, severity, confidence,
		       review_status, reviewed_by, review_notes, reviewed_at, created_at
		FROM violations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ban: list violations: %w", err)
	}
	defer rows.Close()

	var out []*Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("ban: scan violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateBan inserts a ban row.
func (s *PostgresStore) CreateBan(ctx context.Context, b *Ban) error {
	const query = `
		INSERT INTO bans (id, user_id, ban_type, severity, reason, duration_hours,
		                  start_date, end_date, is_active, issued_by, banned_by,
		                  appeal_status, appeal_notes, reviewed_by, reviewed_at,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.BanType, b.Severity, b.Reason, b.DurationHours,
		b.StartDate, b.EndDate, b.IsActive, b.IssuedBy, b.BannedBy,
		b.AppealStatus, b.AppealNotes, b.ReviewedBy, b.ReviewedAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ban: insert ban: %w", err)
	}
	return nil
}

// GetBan loads a ban by id.
func (s *PostgresStore) GetBan(ctx context.Context, id string) (*Ban, error) {
	b, err := scanBan(s.db.QueryRowContext(ctx, banSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ban: get ban: %w", err)
	}
	return b, nil
}

// UpdateBan writes back all mutable ban fields.
func (s *PostgresStore) UpdateBan(ctx context.Context, b *Ban) error {
	const query = `
		UPDATE bans
		SET severity = $2, reason = $3, duration_hours = $4, end_date = $5,
		    is_active = $6, issued_by = $7, banned_by = $8, appeal_status = $9,
		    appeal_notes = $10, reviewed_by = $11, reviewed_at = $12, updated_at = $13
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		b.ID, b.Severity, b.Reason, b.DurationHours, b.EndDate,
		b.IsActive, b.IssuedBy, b.BannedBy, b.AppealStatus,
		b.AppealNotes, b.ReviewedBy, b.ReviewedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ban: update ban: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveBan returns the user's active ban of any of the given types, or nil.
// Expired-but-not-yet-deactivated rows are returned too so callers can
// expire them lazily.
func (s *PostgresStore) ActiveBan(ctx context.Context, userID string, types []BanType) (*Ban, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	query := banSelect + `
		WHERE user_id = $1
		  AND ban_type = ANY($2)
		  AND is_active
		ORDER BY created_at DESC
		LIMIT 1`

	b, err := scanBan(s.db.QueryRowContext(ctx, query, userID, pq.Array(typeNames)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ban: active ban: %w", err)
	}
	return b, nil
}

// DeactivateExpired bulk-deactivates temporary bans whose end date has
// passed and returns how many rows were touched.
func (s *PostgresStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE bans
		SET is_active = FALSE, updated_at = $1
		WHERE is_active
		  AND severity = 'temporary'
		  AND end_date < $1`

	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("ban: deactivate expired: %w", err)
	}
	return res.RowsAffected()
}

// BansByUser lists a user's bans, most recent first.
func (s *PostgresStore) BansByUser(ctx context.Context, userID string, limit int) ([]*Ban, error) {
	query := banSelect + `
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return s.queryBans(ctx, query, userID, limit)
}

// ActiveBans pages through currently active bans, newest first.
func (s *PostgresStore) ActiveBans(ctx context.Context, offset, limit int) ([]*Ban, error) {
	query := banSelect + `
		WHERE is_active
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	return s.queryBans(ctx, query, offset, limit)
}

func (s *PostgresStore) queryBans(ctx context.Context, query string, args ...any) ([]*Ban, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ban: list bans: %w", err)
	}
	defer rows.Close()

	var out []*Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("ban: scan ban: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const banSelect = `
	SELECT id, user_id, ban_type, severity, reason, duration_hours,
	       start_date, end_date, is_active, issued_by, banned_by,
	       appeal_status, appeal_notes, reviewed_by, reviewed_at,
	       created_at, updated_at
	FROM bans`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViolation(row rowScanner) (*Violation, error) {
	var v Violation
	var reviewedBy, reviewNotes sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&v.ID, &v.UserID, &v.SubmissionID, &v.ViolationType, &v.Severity,
		&v.Confidence, &v.ReviewStatus, &reviewedBy, &reviewNotes, &reviewedAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.ReviewedBy = reviewedBy.String
	v.ReviewNotes = reviewNotes.String
	if reviewedAt.Valid {
		v.ReviewedAt = &reviewedAt.Time
	}
	return &v, nil
}

func scanBan(row rowScanner) (*Ban, error) {
	var b Ban
	var endDate, reviewedAt sql.NullTime
	var bannedBy, appealNotes, reviewedBy sql.NullString

	err := row.Scan(&b.ID, &b.UserID, &b.BanType, &b.Severity, &b.Reason, &b.DurationHours,
		&b.StartDate, &endDate, &b.IsActive, &b.IssuedBy, &bannedBy,
		&b.AppealStatus, &appealNotes, &reviewedBy, &reviewedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		b.EndDate = &endDate.Time
	}
	b.BannedBy = bannedBy.String
	b.AppealNotes = appealNotes.String
	b.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		b.ReviewedAt = &reviewedAt.Time
	}
	return &b, nil
}
