package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// maxModelInput is the longest text sent to the spam model. BERT-family
	// models truncate at 512 tokens anyway; truncating here keeps payloads
	// small.
	maxModelInput = 512

	// DefaultPrimaryModel is reported in Result.ModelUsed when the primary
	// endpoint answers.
	DefaultPrimaryModel = "bert-tiny-finetuned-sms-spam-detection"
)

// PrimaryConfig holds settings for the spam inference endpoint.
type PrimaryConfig struct {
	URL     string        // inference endpoint, empty disables the client
	Token   string        // bearer token, optional
	Model   string        // model name reported in results
	Timeout time.Duration // per-request timeout
}

// DefaultPrimaryConfig returns sensible defaults.
func DefaultPrimaryConfig() PrimaryConfig {
	return PrimaryConfig{
		Model:   DefaultPrimaryModel,
		Timeout: 10 * time.Second,
	}
}

// PrimaryClient calls a HuggingFace-style inference endpoint that returns
// label/score pairs for arbitrary text.
type PrimaryClient struct {
	config PrimaryConfig
	http   *http.Client
}

// NewPrimaryClient creates a client for the spam inference endpoint.
func NewPrimaryClient(config PrimaryConfig) *PrimaryClient {
	if config.Model == "" {
		config.Model = DefaultPrimaryModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &PrimaryClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// Classify sends text to the inference endpoint and converts the prediction
// list into a Result. The max-scoring label wins.
func (c *PrimaryClient) Classify(ctx context.Context, text string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"inputs": preprocess(text)})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: primary model returned %d", ErrUnavailable, resp.StatusCode)
	}

	predictions, err := decodePredictions(resp.Body)
	if err != nil {
		return nil, err
	}
	return c.resultFrom(predictions)
}

// decodePredictions accepts both response shapes the inference API produces:
// a flat list of predictions or a list wrapped per input.
func decodePredictions(body io.Reader) ([]Score, error) {
	var nested [][]Score
	var flat []Score

	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	return nil, fmt.Errorf("classifier: unexpected response shape")
}

// resultFrom picks the top prediction. An empty prediction list is treated as
// an unavailable model so the fallback path can take over.
func (c *PrimaryClient) resultFrom(predictions []Score) (*Result, error) {
	if len(predictions) == 0 {
		return nil, fmt.Errorf("%w: no predictions received", ErrUnavailable)
	}

	top := predictions[0]
	for _, p := range predictions[1:] {
		if p.Score > top.Score {
			top = p
		}
	}

	isSpam := strings.EqualFold(top.Label, "spam")
	label := LabelHam
	if isSpam {
		label = LabelSpam
	}

	return &Result{
		IsSpam:      isSpam,
		Label:       label,
		Confidence:  top.Score,
		ModelUsed:   c.config.Model,
		Scores:      predictions,
		ToxicType:   ToxicNone,
		ProcessedAt: time.Now(),
	}, nil
}

// preprocess normalises text before it is sent to the model: trim, collapse
// whitespace, truncate.
func preprocess(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if len(cleaned) > maxModelInput {
		cleaned = cleaned[:maxModelInput]
	}
	return cleaned
}
