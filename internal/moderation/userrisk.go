package moderation

import (
	"context"
	"log"
	"time"
)

const (
	// riskWindow is how far back submission history counts toward user risk.
	riskWindow = 30 * 24 * time.Hour

	// riskHistoryLimit caps how many records feed one estimate.
	riskHistoryLimit = 50

	// defaultNewUserRisk applies when a user has no history: mild suspicion
	// rather than zero, reflecting unknown-actor caution.
	defaultNewUserRisk = 20

	// defaultErrorRisk applies when the history query fails: fail safe
	// toward moderate scrutiny, not toward trust.
	defaultErrorRisk = 50
)

// RiskEstimator derives a 0-100 risk score from a user's rolling 30-day
// submission history.
type RiskEstimator struct {
	records RecordStore
	now     func() time.Time
}

// NewRiskEstimator creates an estimator reading from the given record store.
func NewRiskEstimator(records RecordStore) *RiskEstimator {
	return &RiskEstimator{records: records, now: time.Now}
}

// Score computes the user's risk from up to the last 50 moderation records
// in the trailing 30 days: spam ratio weighs 50, rejection ratio 30, and
// inverse average classifier confidence 20.
func (e *RiskEstimator) Score(ctx context.Context, userID string) int {
	since := e.now().Add(-riskWindow)
	history, err := e.records.RecentRecordsByAuthor(ctx, userID, since, riskHistoryLimit)
	if err != nil {
		log.Printf("[userrisk] history query failed for user=%s, defaulting to %d: %v",
			userID, defaultErrorRisk, err)
		return defaultErrorRisk
	}
	if len(history) == 0 {
		return defaultNewUserRisk
	}

	spam := 0
	rejected := 0
	confidenceSum := 0.0
	for _, r := range history {
		if r.Classification.IsSpam {
			spam++
		}
		if r.Status == StatusRejected || r.Status == StatusAutoRejected {
			rejected++
		}
		confidenceSum += r.Classification.Confidence
	}

	n := float64(len(history))
	risk := float64(spam)/n*50 +
		float64(rejected)/n*30 +
		(1-confidenceSum/n)*20

	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	return int(risk)
}
