package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ToxicityConfig holds settings for the toxicity-scoring endpoint.
type ToxicityConfig struct {
	URL     string        // scoring endpoint, empty disables the client
	Timeout time.Duration // per-request timeout
}

// DefaultToxicityConfig returns sensible defaults. The toxicity model is
// heavier than the spam model, so it gets a longer timeout.
func DefaultToxicityConfig() ToxicityConfig {
	return ToxicityConfig{Timeout: 15 * time.Second}
}

// ToxicityClient calls the toxicity-scoring endpoint, which returns
// per-category probabilities plus its own should-flag heuristic.
type ToxicityClient struct {
	config ToxicityConfig
	http   *http.Client
}

// NewToxicityClient creates a client for the toxicity endpoint.
func NewToxicityClient(config ToxicityConfig) *ToxicityClient {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &ToxicityClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// Analyze scores text for toxicity. Failures are returned as ErrUnavailable
// so the adapter can degrade to the surviving spam signal.
func (c *ToxicityClient) Analyze(ctx context.Context, text string) (*ToxicityResult, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal toxicity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("classifier: build toxicity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: toxicity service returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result ToxicityResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classifier: decode toxicity response: %w", err)
	}
	if result.ToxicType == "" {
		result.ToxicType = ToxicNone
	}
	return &result, nil
}
