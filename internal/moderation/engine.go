package moderation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/travelie/moderation/internal/analysis"
	"github.com/travelie/moderation/internal/ban"
	"github.com/travelie/moderation/internal/classifier"
	"github.com/travelie/moderation/internal/metrics"
)

// ErrorModel is reported in a record's ModelUsed when the classification
// pipeline itself failed and the record exists only to force manual review.
const ErrorModel = "fallback-error-handling"

// Classifier is the classification contract the engine and gate depend on.
// *classifier.Adapter satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string) (*classifier.Result, error)
}

// ViolationRecorder receives the violations the engine raises.
// *ban.Engine satisfies it.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, v *ban.Violation) (*ban.Violation, error)
}

// EngineConfig carries the decision thresholds. They are tuned independently
// from the real-time gate's coarser cutoffs: this pass trades latency for
// precision, the gate does the opposite.
type EngineConfig struct {
	AutoApprove   float64 // ham confidence above this may auto-approve
	AutoReject    float64 // spam confidence above this may auto-reject
	RequireReview float64 // spam confidence above this forces review

	ViolationConfidence float64 // spam confidence above this records a violation
	ViolationHigh       float64 // confidence above this grades the violation high
}

// DefaultEngineConfig returns the production thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AutoApprove:         0.95,
		AutoReject:          0.90,
		RequireReview:       0.70,
		ViolationConfidence: 0.70,
		ViolationHigh:       0.90,
	}
}

// Engine is the asynchronous, thorough moderation pass. It classifies a
// persisted submission, derives content and user risk, applies the decision
// table, attaches flags, and records violations against repeat offenders.
type Engine struct {
	config      EngineConfig
	classifier  Classifier
	submissions SubmissionStore
	records     RecordStore
	risk        *RiskEstimator
	violations  ViolationRecorder
	now         func() time.Time
}

// NewEngine wires the decision engine. violations may be nil, in which case
// the violation side effect is skipped (useful for shadow deployments).
func NewEngine(config EngineConfig, cls Classifier, submissions SubmissionStore, records RecordStore, violations ViolationRecorder) *Engine {
	return &Engine{
		config:      config,
		classifier:  cls,
		submissions: submissions,
		records:     records,
		risk:        NewRiskEstimator(records),
		violations:  violations,
		now:         time.Now,
	}
}

// ProcessSubmission runs the full decision pipeline for a stored submission
// and upserts its moderation record. It is idempotent: re-running it after a
// state change recomputes the record rather than duplicating it. A pipeline
// error never drops the submission; the record lands in pending with
// ModelUsed set to fallback-error-handling so an admin sees it.
func (e *Engine) ProcessSubmission(ctx context.Context, submissionID string) (*ModerationRecord, error) {
	sub, err := e.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	result, err := e.classifier.Classify(ctx, sub.Text)
	if err != nil {
		log.Printf("[engine] classification failed for submission=%s, forcing manual review: %v", submissionID, err)
		return e.saveErrorRecord(ctx, sub)
	}

	content := analysis.Analyze(sub.Text)
	userRisk := e.risk.Score(ctx, sub.AuthorID)

	record := e.decide(sub, result, content, userRisk)
	e.attachFlags(record, result, content, userRisk)

	if err := e.upsertWithRetry(ctx, record); err != nil {
		return nil, err
	}
	metrics.DecisionsTotal.WithLabelValues(string(record.Status)).Inc()

	e.recordViolation(ctx, sub, result)

	log.Printf("[engine] submission=%s decided status=%s priority=%s (confidence=%.2f content=%d user=%d)",
		submissionID, record.Status, record.Priority, result.Confidence, content.RiskScore, userRisk)
	return record, nil
}

// decide applies the decision table. Combined risk blends spam confidence
// (50%), content risk (30%), and user risk (20%); the first matching rule
// wins.
func (e *Engine) decide(sub *Submission, result *classifier.Result, content analysis.Content, userRisk int) *ModerationRecord {
	now := e.now()
	record := &ModerationRecord{
		ID:             uuid.NewString(),
		SubmissionID:   sub.ID,
		AuthorID:       sub.AuthorID,
		Classification: *result,
		ContentRisk:    content.RiskScore,
		UserRisk:       userRisk,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	spamConfidence := 0.0
	if result.IsSpam {
		spamConfidence = result.Confidence
	}
	combinedRisk := spamConfidence*0.5 +
		float64(content.RiskScore)/100*0.3 +
		float64(userRisk)/100*0.2

	switch {
	case result.IsSpam && result.Confidence > e.config.AutoReject && combinedRisk > 0.8:
		record.Status = StatusAutoRejected
		record.Priority = PriorityLow
		record.AutoModerated = true
		record.Reason = fmt.Sprintf("High spam confidence (%.1f%%) with high risk score", result.Confidence*100)

	case !result.IsSpam && result.Confidence > e.config.AutoApprove && combinedRisk < 0.2:
		record.Status = StatusAutoApproved
		record.Priority = PriorityLow
		record.AutoModerated = true
		record.Reason = fmt.Sprintf("High ham confidence (%.1f%%) with low risk score", result.Confidence*100)

	case result.IsSpam && result.Confidence > e.config.RequireReview:
		record.Status = StatusPending
		record.Priority = PriorityMedium
		if combinedRisk > 0.6 {
			record.Priority = PriorityHigh
		}
		record.Reason = fmt.Sprintf("Spam detected with %.1f%% confidence - requires manual review", result.Confidence*100)

	default:
		record.Status = StatusPending
		record.Priority = PriorityMedium
		record.Reason = "Standard review required"
	}

	return record
}

// attachFlags adds the automatic flags derived from classification, content
// signals, and user risk, then re-derives priority from the flag count.
func (e *Engine) attachFlags(record *ModerationRecord, result *classifier.Result, content analysis.Content, userRisk int) {
	now := e.now()

	if result.IsSpam {
		record.Flags = append(record.Flags, Flag{
			Type: FlagSpam, Confidence: result.Confidence, Source: SourceAI, FlaggedAt: now,
		})
	}
	if content.HasLinks || len(content.SuspiciousKeywords) > 0 {
		confidence := float64(content.RiskScore) / 100
		if confidence > 1 {
			confidence = 1
		}
		record.Flags = append(record.Flags, Flag{
			Type: FlagPromotional, Confidence: confidence, Source: SourceAI, FlaggedAt: now,
		})
	}
	if userRisk > 70 {
		record.Flags = append(record.Flags, Flag{
			Type: FlagFake, Confidence: float64(userRisk) / 100, Source: SourceAI, FlaggedAt: now,
		})
	}
	if content.HasCapsRun || content.HasSpecialBurst {
		record.Flags = append(record.Flags, Flag{
			Type: FlagInappropriate, Confidence: 0.6, Source: SourceAI, FlaggedAt: now,
		})
	}

	// Flags only ever raise priority, never lower it.
	switch {
	case len(record.Flags) >= 3:
		record.Priority = PriorityUrgent
	case len(record.Flags) >= 2 && record.Priority != PriorityUrgent:
		record.Priority = PriorityHigh
	}
}

// recordViolation raises a violation against the author when the fused
// classification crosses the violation threshold or carries a toxic signal.
// Ban escalation runs inside the recorder. Failures here are logged, not
// fatal: the moderation record is already saved.
func (e *Engine) recordViolation(ctx context.Context, sub *Submission, result *classifier.Result) {
	if e.violations == nil {
		return
	}

	spamHit := result.IsSpam && result.Confidence > e.config.ViolationConfidence
	toxicHit := result.ToxicType != "" && result.ToxicType != classifier.ToxicNone
	if !spamHit && !toxicHit {
		return
	}

	vtype := ban.ViolationSpam
	if toxicHit {
		vtype = ban.ViolationToxic
	}
	severity := ban.SeverityMedium
	if result.Confidence > e.config.ViolationHigh {
		severity = ban.SeverityHigh
	}

	v := &ban.Violation{
		UserID:        sub.AuthorID,
		SubmissionID:  sub.ID,
		ViolationType: vtype,
		Severity:      severity,
		Confidence:    result.Confidence,
	}
	if _, err := e.violations.RecordViolation(ctx, v); err != nil {
		log.Printf("[engine] recording %s violation for user=%s failed: %v", vtype, sub.AuthorID, err)
		return
	}
	metrics.ViolationsTotal.WithLabelValues(string(vtype)).Inc()
}

// saveErrorRecord persists the safe degraded record after a pipeline error:
// pending status, zero confidence, manual review forced. The system never
// fails open to approved on an internal error.
func (e *Engine) saveErrorRecord(ctx context.Context, sub *Submission) (*ModerationRecord, error) {
	now := e.now()
	record := &ModerationRecord{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		AuthorID:     sub.AuthorID,
		Classification: classifier.Result{
			Label:       classifier.LabelError,
			Confidence:  0,
			ModelUsed:   ErrorModel,
			ToxicType:   classifier.ToxicNone,
			ProcessedAt: now,
		},
		UserRisk:  defaultErrorRisk,
		Status:    StatusPending,
		Priority:  PriorityMedium,
		Reason:    "Processing error - manual review required",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.upsertWithRetry(ctx, record); err != nil {
		return nil, err
	}
	metrics.DecisionsTotal.WithLabelValues(string(record.Status)).Inc()
	return record, nil
}

// upsertWithRetry writes the moderation record, retrying once before
// surfacing the failure. Losing a moderation record is worse than a slow
// response.
func (e *Engine) upsertWithRetry(ctx context.Context, record *ModerationRecord) error {
	err := e.records.UpsertRecord(ctx, record)
	if err == nil {
		return nil
	}
	log.Printf("[engine] record write failed for submission=%s, retrying once: %v", record.SubmissionID, err)
	if err := e.records.UpsertRecord(ctx, record); err != nil {
		return fmt.Errorf("moderation: save record: %w", err)
	}
	return nil
}

// Approve marks a record approved on behalf of an admin reviewer.
func (e *Engine) Approve(ctx context.Context, submissionID, adminID, notes string) (*ModerationRecord, error) {
	return e.review(ctx, submissionID, StatusApproved, adminID, notes)
}

// Reject marks a record rejected on behalf of an admin reviewer.
func (e *Engine) Reject(ctx context.Context, submissionID, adminID, notes string) (*ModerationRecord, error) {
	return e.review(ctx, submissionID, StatusRejected, adminID, notes)
}

func (e *Engine) review(ctx context.Context, submissionID string, status Status, adminID, notes string) (*ModerationRecord, error) {
	record, err := e.records.GetRecordBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	record.Status = status
	record.ReviewedBy = adminID
	record.ReviewedAt = &now
	record.AdminNotes = notes
	record.AutoModerated = false
	record.UpdatedAt = now

	if err := e.upsertWithRetry(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
