package moderation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/travelie/moderation/internal/ban"
	"github.com/travelie/moderation/internal/classifier"
	"github.com/travelie/moderation/internal/metrics"
	"github.com/travelie/moderation/internal/ratelimit"
)

// BanChecker answers whether an author is currently banned.
// *ban.Engine satisfies it.
type BanChecker interface {
	IsUserBanned(ctx context.Context, userID string, banType ban.BanType) (*ban.Ban, error)
}

// Limiter throttles per-author submission traffic ahead of the classifier.
// *ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// GateConfig carries the gate's coarse thresholds. They are deliberately
// separate from the engine's: this check runs synchronously on the
// submission path and trades precision for latency, while the engine pass
// behind it is the thorough line of defense.
type GateConfig struct {
	BlockConfidence float64 // spam confidence at or above this blocks
	FlagConfidence  float64 // spam confidence at or above this flags
}

// DefaultGateConfig returns the production gate thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		BlockConfidence: 0.8,
		FlagConfidence:  0.5,
	}
}

// Gate is the synchronous pre-persist check. A block prevents persistence
// with a user-facing reason; a flag allows persistence but marks the
// submission for priority review; classifier outages fail open because the
// decision engine re-evaluates everything asynchronously anyway.
type Gate struct {
	config     GateConfig
	classifier Classifier
	bans       BanChecker
	limiter    Limiter
	records    RecordStore
	now        func() time.Time
}

// NewGate wires the real-time gate. bans, limiter, and records may each be
// nil to disable the corresponding check or snapshot.
func NewGate(config GateConfig, cls Classifier, bans BanChecker, limiter Limiter, records RecordStore) *Gate {
	return &Gate{
		config:     config,
		classifier: cls,
		bans:       bans,
		limiter:    limiter,
		records:    records,
		now:        time.Now,
	}
}

// EvaluateSubmission checks text before it is stored and returns
// allow/flag/block with a reason. The classifier call may be abandoned when
// the caller disconnects (it honors ctx), and its outage fails open.
func (g *Gate) EvaluateSubmission(ctx context.Context, text, authorID, threadID string) (*GateResult, error) {
	if banned := g.checkBan(ctx, authorID); banned != nil {
		metrics.GateActionsTotal.WithLabelValues(string(ActionBlock)).Inc()
		return banned, nil
	}

	if throttled := g.checkRateLimit(ctx, authorID); throttled != nil {
		metrics.GateActionsTotal.WithLabelValues(string(ActionFlag)).Inc()
		return throttled, nil
	}

	result, err := g.classifier.Classify(ctx, text)
	if err != nil {
		// Fail open: availability beats strict enforcement at this layer.
		log.Printf("[gate] classifier unavailable, allowing with warning: %v", err)
		metrics.GateActionsTotal.WithLabelValues(string(ActionAllow)).Inc()
		return &GateResult{
			Action: ActionAllow,
			Reason: "Detection service unavailable - allowed with warning",
		}, nil
	}

	gr := g.applyThresholds(result)
	metrics.GateActionsTotal.WithLabelValues(string(gr.Action)).Inc()

	g.saveSnapshot(text, authorID, threadID, gr)
	return gr, nil
}

func (g *Gate) applyThresholds(result *classifier.Result) *GateResult {
	gr := &GateResult{Action: ActionAllow, Classification: result}

	switch {
	case result.ToxicityDetected:
		gr.Action = ActionBlock
		gr.Reason = fmt.Sprintf("Toxic content detected: %s", result.ToxicType)

	case result.IsSpam && result.Confidence >= g.config.BlockConfidence:
		gr.Action = ActionBlock
		gr.Reason = fmt.Sprintf("High confidence spam detected (%.1f%%)", result.Confidence*100)

	case result.IsSpam && result.Confidence >= g.config.FlagConfidence:
		gr.Action = ActionFlag
		gr.Reason = fmt.Sprintf("Medium confidence spam - flagged for review (%.1f%%)", result.Confidence*100)
	}

	return gr
}

// checkBan refuses submissions from actively banned authors. Ban-store
// errors fail open.
func (g *Gate) checkBan(ctx context.Context, authorID string) *GateResult {
	if g.bans == nil {
		return nil
	}
	b, err := g.bans.IsUserBanned(ctx, authorID, ban.BanReply)
	if err != nil {
		log.Printf("[gate] ban lookup failed for user=%s (failing open): %v", authorID, err)
		return nil
	}
	if b == nil {
		return nil
	}

	reason := "You are currently banned from posting replies"
	if remaining := b.Remaining(g.now()); remaining > 0 {
		reason = fmt.Sprintf("%s (%s remaining)", reason, remaining.Round(time.Minute))
	}
	return &GateResult{Action: ActionBlock, Reason: reason}
}

// checkRateLimit flags authors who are submitting faster than the limit.
// Redis errors fail open inside the limiter.
func (g *Gate) checkRateLimit(ctx context.Context, authorID string) *GateResult {
	if g.limiter == nil {
		return nil
	}
	allowed, err := g.limiter.Allow(ctx, authorID, ratelimit.RuleSubmit)
	if err != nil || allowed {
		return nil
	}
	return &GateResult{
		Action: ActionFlag,
		Reason: "Submission rate limit exceeded - flagged for review",
	}
}

// saveSnapshot persists the gate verdict for the spam dashboard. The write
// is handed off the synchronous path; failures are logged, never surfaced to
// the submitting user.
func (g *Gate) saveSnapshot(text, authorID, threadID string, gr *GateResult) {
	if g.records == nil || gr.Classification == nil {
		return
	}

	gc := &GateCheck{
		ID:             uuid.NewString(),
		AuthorID:       authorID,
		ThreadID:       threadID,
		Text:           text,
		Action:         gr.Action,
		Reason:         gr.Reason,
		Classification: *gr.Classification,
		CreatedAt:      g.now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.records.SaveGateCheck(ctx, gc); err != nil {
			log.Printf("[gate] saving gate check %s failed: %v", gc.ID, err)
		}
	}()
}
