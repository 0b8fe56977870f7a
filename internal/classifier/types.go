package classifier

import (
	"errors"
	"time"
)

// ErrInvalidInput is returned when the text to classify is empty or
// whitespace-only. Nothing is sent to the model endpoints in that case.
var ErrInvalidInput = errors.New("classifier: text content is required")

// ErrUnavailable indicates a model endpoint could not be reached in time.
// Callers recover from it via the fallback heuristic; it never aborts a
// moderation decision.
var ErrUnavailable = errors.New("classifier: model unavailable")

// Label is the verdict of the spam classifier.
type Label string

const (
	LabelSpam  Label = "spam"
	LabelHam   Label = "ham"
	LabelError Label = "error"
)

// ToxicType categorises a toxic signal. ToxicNone means no toxicity fired.
type ToxicType string

const (
	ToxicNone          ToxicType = "none"
	ToxicProfanity     ToxicType = "profanity"
	ToxicHateSpeech    ToxicType = "hate_speech"
	ToxicHarassment    ToxicType = "harassment"
	ToxicInappropriate ToxicType = "inappropriate"
)

// Score is one label/probability pair from the spam model.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result is the fused classification outcome for a piece of text.
// Confidence is always the probability of the max-scoring label.
type Result struct {
	IsSpam           bool      `json:"is_spam"`
	Label            Label     `json:"label"`
	Confidence       float64   `json:"confidence"`
	ModelUsed        string    `json:"model_used"`
	Scores           []Score   `json:"scores,omitempty"`
	ToxicityDetected bool      `json:"toxicity_detected"`
	ToxicType        ToxicType `json:"toxic_type"`
	FallbackUsed     bool      `json:"fallback_used"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// ToxicityScores holds the per-category probabilities from the toxicity
// service.
type ToxicityScores struct {
	Toxicity       float64 `json:"toxicity"`
	SevereToxicity float64 `json:"severe_toxicity"`
	Obscene        float64 `json:"obscene"`
	Threat         float64 `json:"threat"`
	Insult         float64 `json:"insult"`
	IdentityAttack float64 `json:"identity_attack"`
}

// ToxicityResult is the raw response of the toxicity-scoring endpoint.
type ToxicityResult struct {
	IsToxic            bool           `json:"is_toxic"`
	Confidence         float64        `json:"confidence"`
	ToxicType          ToxicType      `json:"toxic_type"`
	ShouldFlag         bool           `json:"should_flag"`
	CombinedConfidence float64        `json:"combined_confidence"`
	Scores             ToxicityScores `json:"scores"`
}
