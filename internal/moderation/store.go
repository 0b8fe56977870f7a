package moderation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists submissions, moderation records, and gate-check
// snapshots. Classification and flags are stored as JSONB so the audit trail
// keeps the full fused classifier output.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSubmission inserts a submission row.
func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	const query = `
		INSERT INTO submissions (id, author_id, thread_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, sub.ID, sub.AuthorID, sub.ThreadID, sub.Text, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("moderation: insert submission: %w", err)
	}
	return nil
}

// GetSubmission loads a submission by id.
func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	const query = `
		SELECT id, author_id, thread_id, text, created_at
		FROM submissions
		WHERE id = $1`

	var sub Submission
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.AuthorID, &sub.ThreadID, &sub.Text, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("moderation: get submission: %w", err)
	}
	return &sub, nil
}

// UnprocessedSubmissions returns up to limit submissions with no moderation
// record yet, oldest first.
func (s *PostgresStore) UnprocessedSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	const query = `
		SELECT s.id, s.author_id, s.thread_id, s.text, s.created_at
		FROM submissions s
		LEFT JOIN moderation_records r ON r.submission_id = s.id
		WHERE r.id IS NULL
		ORDER BY s.created_at ASC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("moderation: list unprocessed: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.AuthorID, &sub.ThreadID, &sub.Text, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("moderation: scan submission: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// UpsertRecord creates or replaces the single moderation record of a
// submission, keyed on submission_id so re-processing never duplicates it.
func (s *PostgresStore) UpsertRecord(ctx context.Context, r *ModerationRecord) error {
	classification, err := json.Marshal(r.Classification)
	if err != nil {
		return fmt.Errorf("moderation: marshal classification: %w", err)
	}
	flags, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("moderation: marshal flags: %w", err)
	}

	const query = `
		INSERT INTO moderation_records (id, submission_id, author_id, classification, content_risk,
		                                user_risk, status, priority, flags, auto_moderated, reason,
		                                reviewed_by, reviewed_at, admin_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (submission_id) DO UPDATE
		SET classification = EXCLUDED.classification,
		    content_risk   = EXCLUDED.content_risk,
		    user_risk      = EXCLUDED.user_risk,
		    status         = EXCLUDED.status,
		    priority       = EXCLUDED.priority,
		    flags          = EXCLUDED.flags,
		    auto_moderated = EXCLUDED.auto_moderated,
		    reason         = EXCLUDED.reason,
		    reviewed_by    = EXCLUDED.reviewed_by,
		    reviewed_at    = EXCLUDED.reviewed_at,
		    admin_notes    = EXCLUDED.admin_notes,
		    updated_at     = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.SubmissionID, r.AuthorID, classification, r.ContentRisk,
		r.UserRisk, r.Status, r.Priority, flags, r.AutoModerated, r.Reason,
		nullString(r.ReviewedBy), r.ReviewedAt, nullString(r.AdminNotes),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("moderation: upsert record: %w", err)
	}
	return nil
}

// GetRecordBySubmission loads the moderation record of one submission.
func (s *PostgresStore) GetRecordBySubmission(ctx context.Context, submissionID string) (*ModerationRecord, error) {
	query := recordSelect + ` WHERE submission_id = $1`

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, submissionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("moderation: get record: %w", err)
	}
	return r, nil
}

// RecentRecordsByAuthor returns up to limit of an author's records created
// since the given time, newest first.
func (s *PostgresStore) RecentRecordsByAuthor(ctx context.Context, authorID string, since time.Time, limit int) ([]*ModerationRecord, error) {
	query := recordSelect + `
		WHERE author_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, authorID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("moderation: list records: %w", err)
	}
	defer rows.Close()

	var out []*ModerationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("moderation: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveGateCheck inserts a gate-check snapshot.
func (s *PostgresStore) SaveGateCheck(ctx context.Context, gc *GateCheck) error {
	classification, err := json.Marshal(gc.Classification)
	if err != nil {
		return fmt.Errorf("moderation: marshal gate classification: %w", err)
	}

	const query = `
		INSERT INTO gate_checks (id, author_id, thread_id, text, action, reason, classification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, query,
		gc.ID, gc.AuthorID, gc.ThreadID, gc.Text, gc.Action, gc.Reason, classification, gc.CreatedAt)
	if err != nil {
		return fmt.Errorf("moderation: insert gate check: %w", err)
	}
	return nil
}

const recordSelect = `
	SELECT id, submission_id, author_id, classification, content_risk, user_risk,
	       status, priority, flags, auto_moderated, reason, reviewed_by,
	       reviewed_at, admin_notes, created_at, updated_at
	FROM moderation_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ModerationRecord, error) {
	var r ModerationRecord
	var classification, flags []byte
	var reviewedBy, adminNotes sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&r.ID, &r.SubmissionID, &r.AuthorID, &classification, &r.ContentRisk,
		&r.UserRisk, &r.Status, &r.Priority, &flags, &r.AutoModerated, &r.Reason,
		&reviewedBy, &reviewedAt, &adminNotes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(classification, &r.Classification); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &r.Flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
	}
	r.ReviewedBy = reviewedBy.String
	r.AdminNotes = adminNotes.String
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
