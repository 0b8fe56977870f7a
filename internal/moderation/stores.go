package moderation

import (
	"context"
	"time"
)

// SubmissionStore is the persistence contract for submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	// UnprocessedSubmissions returns up to limit submissions that have no
	// moderation record yet, oldest first. The background reconciler feeds
	// on this.
	UnprocessedSubmissions(ctx context.Context, limit int) ([]*Submission, error)
}

// RecordStore is the persistence contract for moderation records and gate
// snapshots.
type RecordStore interface {
	// UpsertRecord creates or replaces the single moderation record of a
	// submission. Re-processing recomputes the record, it never duplicates
	// it.
	UpsertRecord(ctx context.Context, r *ModerationRecord) error
	GetRecordBySubmission(ctx context.Context, submissionID string) (*ModerationRecord, error)
	// RecentRecordsByAuthor returns up to limit of the author's records
	// created since the given time, newest first. Feeds the user risk
	// estimator.
	RecentRecordsByAuthor(ctx context.Context, authorID string, since time.Time, limit int) ([]*ModerationRecord, error)
	SaveGateCheck(ctx context.Context, gc *GateCheck) error
}
