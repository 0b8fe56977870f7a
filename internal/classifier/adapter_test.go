package classifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func spamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func brokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func TestAdapterEmptyInput(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	_, err := adapter.Classify(context.Background(), "   \n\t ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAdapterBothModelsUp(t *testing.T) {
	primarySrv := spamServer(t, `[[{"label":"spam","score":0.97},{"label":"ham","score":0.03}]]`)
	defer primarySrv.Close()
	toxicitySrv := spamServer(t, `{"is_toxic":false,"confidence":0.1,"toxic_type":"none"}`)
	defer toxicitySrv.Close()

	primary := NewPrimaryClient(PrimaryConfig{URL: primarySrv.URL})
	toxicity := NewToxicityClient(ToxicityConfig{URL: toxicitySrv.URL})
	adapter := NewAdapter(primary, toxicity)

	result, err := adapter.Classify(context.Background(), "limited time offer just for you")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.IsSpam {
		t.Errorf("expected spam verdict")
	}
	if result.Confidence != 0.97 {
		t.Errorf("expected confidence 0.97, got %v", result.Confidence)
	}
	if result.FallbackUsed {
		t.Errorf("fallback must not be reported when the primary answered")
	}
	if result.ModelUsed != DefaultPrimaryModel {
		t.Errorf("expected model %q, got %q", DefaultPrimaryModel, result.ModelUsed)
	}
}

func TestAdapterToxicityOverride(t *testing.T) {
	primarySrv := spamServer(t, `[[{"label":"ham","score":0.92},{"label":"spam","score":0.08}]]`)
	defer primarySrv.Close()
	toxicitySrv := spamServer(t, `{"is_toxic":true,"toxic_type":"hate_speech","combined_confidence":0.88}`)
	defer toxicitySrv.Close()

	adapter := NewAdapter(
		NewPrimaryClient(PrimaryConfig{URL: primarySrv.URL}),
		NewToxicityClient(ToxicityConfig{URL: toxicitySrv.URL}),
	)

	result, err := adapter.Classify(context.Background(), "nobody wants your kind around here")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.IsSpam {
		t.Fatalf("toxicity must force a spam verdict over a ham primary")
	}
	if !result.ToxicityDetected {
		t.Errorf("expected toxicity detected")
	}
	if result.ToxicType != ToxicHateSpeech {
		t.Errorf("expected toxic type %q, got %q", ToxicHateSpeech, result.ToxicType)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected max confidence 0.92, got %v", result.Confidence)
	}
}

func TestAdapterPrimaryDownUsesFallback(t *testing.T) {
	primarySrv := brokenServer(t)
	defer primarySrv.Close()
	toxicitySrv := spamServer(t, `{"is_toxic":false}`)
	defer toxicitySrv.Close()

	adapter := NewAdapter(
		NewPrimaryClient(PrimaryConfig{URL: primarySrv.URL}),
		NewToxicityClient(ToxicityConfig{URL: toxicitySrv.URL}),
	)

	result, err := adapter.Classify(context.Background(), "click here for free money winner prizes")
	if err != nil {
		t.Fatalf("Classify must not fail when the fallback can answer: %v", err)
	}
	if !result.IsSpam {
		t.Errorf("expected the keyword heuristic to flag this")
	}
	if !result.FallbackUsed {
		t.Errorf("expected FallbackUsed to be reported")
	}
}

func TestAdapterBothModelsDown(t *testing.T) {
	primarySrv := brokenServer(t)
	defer primarySrv.Close()
	toxicitySrv := brokenServer(t)
	defer toxicitySrv.Close()

	adapter := NewAdapter(
		NewPrimaryClient(PrimaryConfig{URL: primarySrv.URL}),
		NewToxicityClient(ToxicityConfig{URL: toxicitySrv.URL}),
	)

	result, err := adapter.Classify(context.Background(), "a perfectly ordinary review of a perfectly ordinary stay")
	if err != nil {
		t.Fatalf("Classify must not fail on total model outage: %v", err)
	}
	if result.IsSpam {
		t.Errorf("heuristic should pass clean text")
	}
	if !result.FallbackUsed {
		t.Errorf("expected FallbackUsed to be reported")
	}
	if result.ModelUsed != FallbackModel {
		t.Errorf("expected model %q, got %q", FallbackModel, result.ModelUsed)
	}
}

func TestAdapterNoClientsConfigured(t *testing.T) {
	adapter := NewAdapter(nil, nil)

	result, err := adapter.Classify(context.Background(), "free money winner click here")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.IsSpam {
		t.Errorf("expected the heuristic to flag this")
	}
	if !result.FallbackUsed {
		t.Errorf("expected FallbackUsed to be reported")
	}
}
