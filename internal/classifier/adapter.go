// Package classifier wraps the external text classifiers behind a uniform
// Classify contract. A primary spam/ham model and a secondary toxicity model
// are invoked concurrently; either may fail independently and the pipeline
// degrades to the surviving signal. When both are unavailable a deterministic
// keyword heuristic takes over, so Classify never fails outright on model
// outages.
package classifier

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/travelie/moderation/internal/metrics"
)

// Adapter fuses the primary and toxicity classifiers. Either client may be
// nil, in which case that signal is simply absent.
type Adapter struct {
	primary  *PrimaryClient
	toxicity *ToxicityClient
}

// NewAdapter creates an Adapter. Pass nil for endpoints that are not
// configured.
func NewAdapter(primary *PrimaryClient, toxicity *ToxicityClient) *Adapter {
	return &Adapter{primary: primary, toxicity: toxicity}
}

// Classify runs the configured classifiers concurrently and fuses their
// outputs. It returns ErrInvalidInput for empty text; model failures are
// recovered via the fallback heuristic and reported through
// Result.FallbackUsed rather than as errors.
func (a *Adapter) Classify(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	type primaryOut struct {
		result *Result
		err    error
	}
	type toxicityOut struct {
		result *ToxicityResult
		err    error
	}

	primaryCh := make(chan primaryOut, 1)
	toxicityCh := make(chan toxicityOut, 1)

	go func() {
		if a.primary == nil {
			primaryCh <- primaryOut{err: ErrUnavailable}
			return
		}
		start := time.Now()
		r, err := a.primary.Classify(ctx, text)
		metrics.ClassifierLatency.WithLabelValues("primary").Observe(time.Since(start).Seconds())
		primaryCh <- primaryOut{result: r, err: err}
	}()

	go func() {
		if a.toxicity == nil {
			toxicityCh <- toxicityOut{}
			return
		}
		start := time.Now()
		r, err := a.toxicity.Analyze(ctx, text)
		metrics.ClassifierLatency.WithLabelValues("toxicity").Observe(time.Since(start).Seconds())
		toxicityCh <- toxicityOut{result: r, err: err}
	}()

	// Settle both calls and combine whatever survived. Neither failure
	// aborts the classification.
	p := <-primaryCh
	t := <-toxicityCh

	spamResult := p.result
	if p.err != nil {
		log.Printf("[classifier] primary model failed, using fallback: %v", p.err)
		spamResult = fallbackClassify(text)
		metrics.ClassifierFallbacksTotal.Inc()
	}
	if t.err != nil {
		log.Printf("[classifier] toxicity service failed, degrading to spam signal: %v", t.err)
		t.result = nil
	}

	fused := fuse(spamResult, t.result, text)
	if p.err != nil {
		fused.FallbackUsed = true
	}
	return fused, nil
}
