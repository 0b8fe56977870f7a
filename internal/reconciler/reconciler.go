// Package reconciler implements the background sweep that finds persisted
// submissions without a moderation record and feeds them through the decision
// engine. An in-flight dedup set prevents the sweep and the synchronous
// moderation path from double-processing the same submission concurrently.
package reconciler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/travelie/moderation/internal/metrics"
	"github.com/travelie/moderation/internal/moderation"
)

// Processor runs the decision pipeline for one submission.
// *moderation.Engine satisfies it.
type Processor interface {
	ProcessSubmission(ctx context.Context, submissionID string) (*moderation.ModerationRecord, error)
}

// Config holds the reconciler's cadence settings.
type Config struct {
	Interval  time.Duration // time between cycles
	BatchSize int           // max submissions per cycle
	ItemDelay time.Duration // pause between items, respects classifier rate limits
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		Interval:  30 * time.Second,
		BatchSize: 10,
		ItemDelay: 500 * time.Millisecond,
	}
}

// Reconciler periodically sweeps unprocessed submissions through the
// decision engine. It owns the only shared mutable state between the sweep
// and directly-triggered moderation calls: the in-flight set.
type Reconciler struct {
	config      Config
	submissions moderation.SubmissionStore
	processor   Processor

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a reconciler.
func New(config Config, submissions moderation.SubmissionStore, processor Processor) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	return &Reconciler{
		config:      config,
		submissions: submissions,
		processor:   processor,
		inflight:    make(map[string]struct{}),
	}
}

// TryAcquire marks a submission as in flight. It returns false when the
// submission is already being processed by another path, in which case the
// caller must skip it.
func (r *Reconciler) TryAcquire(submissionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[submissionID]; busy {
		return false
	}
	r.inflight[submissionID] = struct{}{}
	return true
}

// Release removes a submission from the in-flight set.
func (r *Reconciler) Release(submissionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, submissionID)
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("[reconciler] starting (interval=%s batch=%d)", r.config.Interval, r.config.BatchSize)

	r.runCycleLogged(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[reconciler] stopped")
			return
		case <-ticker.C:
			r.runCycleLogged(ctx)
		}
	}
}

func (r *Reconciler) runCycleLogged(ctx context.Context) {
	processed, failed, err := r.RunCycle(ctx)
	if err != nil {
		log.Printf("[reconciler] cycle failed: %v", err)
		return
	}
	if processed > 0 || failed > 0 {
		log.Printf("[reconciler] cycle completed: %d processed, %d errors", processed, failed)
	}
}

// RunCycle fetches one batch of unprocessed submissions and runs each
// through the decision engine. An error on one item never aborts the batch:
// the engine leaves a degraded pending record behind and the sweep moves on.
// RunCycle is also triggerable on demand, independent of the timer.
func (r *Reconciler) RunCycle(ctx context.Context) (processed, failed int, err error) {
	batch, err := r.submissions.UnprocessedSubmissions(ctx, r.config.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	metrics.ReconcilerBatchSize.Set(float64(len(batch)))
	if len(batch) == 0 {
		return 0, 0, nil
	}

	for i, sub := range batch {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}
		if !r.TryAcquire(sub.ID) {
			continue
		}

		if _, perr := r.processor.ProcessSubmission(ctx, sub.ID); perr != nil {
			log.Printf("[reconciler] processing submission=%s failed: %v", sub.ID, perr)
			failed++
		} else {
			processed++
		}
		r.Release(sub.ID)

		// Pace the batch so background traffic stays inside the classifier
		// adapter's rate limits.
		if r.config.ItemDelay > 0 && i < len(batch)-1 {
			select {
			case <-ctx.Done():
				return processed, failed, ctx.Err()
			case <-time.After(r.config.ItemDelay):
			}
		}
	}
	return processed, failed, nil
}
