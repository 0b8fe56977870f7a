package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/travelie/moderation/internal/classifier"
)

func seedHistory(store *memStore, authorID string, spam, rejected int, total int, confidence float64) {
	for i := 0; i < total; i++ {
		r := &ModerationRecord{
			ID:           fmt.Sprintf("rec-%d", i),
			SubmissionID: fmt.Sprintf("sub-%d", i),
			AuthorID:     authorID,
			Status:       StatusApproved,
			Classification: classifier.Result{
				Label:      classifier.LabelHam,
				Confidence: confidence,
			},
			CreatedAt: time.Now(),
		}
		if i < spam {
			r.Classification.IsSpam = true
			r.Classification.Label = classifier.LabelSpam
		}
		if i < rejected {
			r.Status = StatusRejected
		}
		store.records[r.SubmissionID] = r
	}
}

func TestRiskScoreNewUser(t *testing.T) {
	estimator := NewRiskEstimator(newMemStore())

	if got := estimator.Score(context.Background(), "nobody"); got != defaultNewUserRisk {
		t.Errorf("expected new-user default %d, got %d", defaultNewUserRisk, got)
	}
}

func TestRiskScoreHistoryErrorDefaults(t *testing.T) {
	store := newMemStore()
	store.historyErr = errors.New("db down")
	estimator := NewRiskEstimator(store)

	if got := estimator.Score(context.Background(), "author-1"); got != defaultErrorRisk {
		t.Errorf("expected error default %d, got %d", defaultErrorRisk, got)
	}
}

func TestRiskScoreBlendsSignals(t *testing.T) {
	// 2/4 spam (25), 1/4 rejected (7.5), avg confidence 0.5 (10) => 42.
	store := newMemStore()
	seedHistory(store, "author-1", 2, 1, 4, 0.5)
	estimator := NewRiskEstimator(store)

	if got := estimator.Score(context.Background(), "author-1"); got != 42 {
		t.Errorf("expected risk 42, got %d", got)
	}
}

func TestRiskScoreCleanHistoryIsLow(t *testing.T) {
	store := newMemStore()
	seedHistory(store, "author-1", 0, 0, 10, 0.95)
	estimator := NewRiskEstimator(store)

	got := estimator.Score(context.Background(), "author-1")
	if got > 5 {
		t.Errorf("clean high-confidence history must score low, got %d", got)
	}
}

func TestRiskScoreSpammyHistoryIsHigh(t *testing.T) {
	store := newMemStore()
	seedHistory(store, "author-1", 10, 10, 10, 0.9)
	estimator := NewRiskEstimator(store)

	got := estimator.Score(context.Background(), "author-1")
	if got < 80 {
		t.Errorf("all-spam all-rejected history must score high, got %d", got)
	}
}
