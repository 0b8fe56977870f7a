package moderation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/travelie/moderation/internal/ban"
	"github.com/travelie/moderation/internal/classifier"
)

// memStore is an in-memory SubmissionStore + RecordStore for engine and gate
// tests.
type memStore struct {
	mu          sync.Mutex
	submissions map[string]*Submission
	records     map[string]*ModerationRecord // keyed by submission id
	gateChecks  []*GateCheck
	historyErr  error
}

func newMemStore() *memStore {
	return &memStore{
		submissions: make(map[string]*Submission),
		records:     make(map[string]*ModerationRecord),
	}
}

func (s *memStore) CreateSubmission(_ context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
	return nil
}

func (s *memStore) GetSubmission(_ context.Context, id string) (*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (s *memStore) UnprocessedSubmissions(_ context.Context, limit int) ([]*Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Submission
	for _, sub := range s.submissions {
		if _, done := s.records[sub.ID]; done {
			continue
		}
		out = append(out, sub)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) UpsertRecord(_ context.Context, r *ModerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.SubmissionID] = r
	return nil
}

func (s *memStore) GetRecordBySubmission(_ context.Context, submissionID string) (*ModerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *memStore) RecentRecordsByAuthor(_ context.Context, authorID string, _ time.Time, limit int) ([]*ModerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	var out []*ModerationRecord
	for _, r := range s.records {
		if r.AuthorID == authorID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) SaveGateCheck(_ context.Context, gc *GateCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateChecks = append(s.gateChecks, gc)
	return nil
}

func (s *memStore) gateCheckCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gateChecks)
}

// stubClassifier returns a fixed result or error.
type stubClassifier struct {
	result *classifier.Result
	err    error
}

func (c *stubClassifier) Classify(_ context.Context, _ string) (*classifier.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	r := *c.result
	return &r, nil
}

// stubRecorder collects the violations the engine raises.
type stubRecorder struct {
	mu         sync.Mutex
	violations []*ban.Violation
}

func (r *stubRecorder) RecordViolation(_ context.Context, v *ban.Violation) (*ban.Violation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
	return v, nil
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.violations)
}

func spamResult(confidence float64) *classifier.Result {
	return &classifier.Result{
		IsSpam:     true,
		Label:      classifier.LabelSpam,
		Confidence: confidence,
		ModelUsed:  classifier.DefaultPrimaryModel,
		ToxicType:  classifier.ToxicNone,
	}
}

func hamResult(confidence float64) *classifier.Result {
	return &classifier.Result{
		IsSpam:     false,
		Label:      classifier.LabelHam,
		Confidence: confidence,
		ModelUsed:  classifier.DefaultPrimaryModel,
		ToxicType:  classifier.ToxicNone,
	}
}

func seedSubmission(store *memStore, id, author, text string) {
	store.submissions[id] = &Submission{
		ID:        id,
		AuthorID:  author,
		ThreadID:  "thread-1",
		Text:      text,
		CreatedAt: time.Now(),
	}
}

const riskyText = "WIN FREE MONEY!!! click here http://x.co call now urgent act now guaranteed winner foo@bar.com 0123456789"

func TestProcessSubmissionAutoRejects(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", riskyText)
	recorder := &stubRecorder{}
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: spamResult(0.97)}, store, store, recorder)

	record, err := engine.ProcessSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	if record.Status != StatusAutoRejected {
		t.Errorf("expected %q, got %q", StatusAutoRejected, record.Status)
	}
	if !record.AutoModerated {
		t.Errorf("expected auto-moderated record")
	}
	if record.ContentRisk != 100 {
		t.Errorf("expected content risk 100, got %d", record.ContentRisk)
	}
	// Spam + promotional + inappropriate flags push priority to urgent.
	if len(record.Flags) < 3 {
		t.Fatalf("expected at least 3 flags, got %d", len(record.Flags))
	}
	if record.Priority != PriorityUrgent {
		t.Errorf("expected urgent priority from flag count, got %q", record.Priority)
	}

	if recorder.count() != 1 {
		t.Fatalf("expected one violation, got %d", recorder.count())
	}
	v := recorder.violations[0]
	if v.ViolationType != ban.ViolationSpam {
		t.Errorf("expected spam violation, got %q", v.ViolationType)
	}
	if v.Severity != ban.SeverityHigh {
		t.Errorf("confidence 0.97 must grade high, got %q", v.Severity)
	}
}

func TestProcessSubmissionAutoApproves(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "The pool area was clean and the staff were friendly throughout.")
	recorder := &stubRecorder{}
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: hamResult(0.98)}, store, store, recorder)

	record, err := engine.ProcessSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	if record.Status != StatusAutoApproved {
		t.Errorf("expected %q, got %q", StatusAutoApproved, record.Status)
	}
	if record.Priority != PriorityLow {
		t.Errorf("expected low priority, got %q", record.Priority)
	}
	if len(record.Flags) != 0 {
		t.Errorf("expected no flags, got %d", len(record.Flags))
	}
	if recorder.count() != 0 {
		t.Errorf("clean content must not raise violations")
	}
}

func TestProcessSubmissionMidConfidenceRequiresReview(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "A fairly ordinary description of the room and its balcony view.")
	recorder := &stubRecorder{}
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: spamResult(0.75)}, store, store, recorder)

	record, err := engine.ProcessSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	if record.Status != StatusPending {
		t.Errorf("expected %q, got %q", StatusPending, record.Status)
	}
	if record.Priority != PriorityMedium {
		t.Errorf("expected medium priority, got %q", record.Priority)
	}
	if !strings.Contains(record.Reason, "requires manual review") {
		t.Errorf("unexpected reason %q", record.Reason)
	}
	if recorder.count() != 1 {
		t.Errorf("confidence above the violation threshold must be recorded")
	}
	if recorder.violations[0].Severity != ban.SeverityMedium {
		t.Errorf("confidence 0.75 must grade medium, got %q", recorder.violations[0].Severity)
	}
}

func TestProcessSubmissionLowConfidenceDefaults(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "Nothing remarkable happened during our short weekend stay there.")
	recorder := &stubRecorder{}
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: spamResult(0.6)}, store, store, recorder)

	record, err := engine.ProcessSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	if record.Status != StatusPending || record.Reason != "Standard review required" {
		t.Errorf("expected default pending decision, got %q/%q", record.Status, record.Reason)
	}
	if recorder.count() != 0 {
		t.Errorf("confidence below the violation threshold must not be recorded")
	}
}

func TestProcessSubmissionToxicRaisesToxicViolation(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "An unpleasant message aimed at another user.")
	recorder := &stubRecorder{}
	result := spamResult(0.85)
	result.ToxicityDetected = true
	result.ToxicType = classifier.ToxicHarassment
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: result}, store, store, recorder)

	if _, err := engine.ProcessSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	if recorder.count() != 1 {
		t.Fatalf("expected one violation, got %d", recorder.count())
	}
	if recorder.violations[0].ViolationType != ban.ViolationToxic {
		t.Errorf("toxic signal must raise a toxic violation, got %q", recorder.violations[0].ViolationType)
	}
}

func TestProcessSubmissionClassifierErrorForcesReview(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "some text")
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{err: errors.New("boom")}, store, store, nil)

	record, err := engine.ProcessSubmission(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("a pipeline error must still produce a record: %v", err)
	}

	if record.Status != StatusPending {
		t.Errorf("expected pending, got %q", record.Status)
	}
	if record.Classification.ModelUsed != ErrorModel {
		t.Errorf("expected model %q, got %q", ErrorModel, record.Classification.ModelUsed)
	}
	if record.Classification.Label != classifier.LabelError {
		t.Errorf("expected error label, got %q", record.Classification.Label)
	}
	if record.UserRisk != defaultErrorRisk {
		t.Errorf("expected error-path user risk %d, got %d", defaultErrorRisk, record.UserRisk)
	}
}

func TestProcessSubmissionIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", "A short note about the breakfast buffet quality.")
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: hamResult(0.9)}, store, store, nil)

	if _, err := engine.ProcessSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := engine.ProcessSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.records) != 1 {
		t.Errorf("re-processing must not duplicate the record, got %d", len(store.records))
	}
}

func TestProcessSubmissionUnknownID(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: hamResult(0.9)}, store, store, nil)

	if _, err := engine.ProcessSubmission(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApproveOverridesAutoDecision(t *testing.T) {
	store := newMemStore()
	seedSubmission(store, "sub-1", "author-1", riskyText)
	engine := NewEngine(DefaultEngineConfig(), &stubClassifier{result: spamResult(0.97)}, store, store, nil)

	if _, err := engine.ProcessSubmission(context.Background(), "sub-1"); err != nil {
		t.Fatalf("ProcessSubmission: %v", err)
	}

	record, err := engine.Approve(context.Background(), "sub-1", "admin-7", "legitimate promo partner")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if record.Status != StatusApproved {
		t.Errorf("expected approved, got %q", record.Status)
	}
	if record.AutoModerated {
		t.Errorf("manual review must clear the auto-moderated flag")
	}
	if record.ReviewedBy != "admin-7" || record.ReviewedAt == nil {
		t.Errorf("expected reviewer fields populated")
	}
}
