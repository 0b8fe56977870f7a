package classifier

import (
	"math"
	"testing"
)

func TestFallbackCleanText(t *testing.T) {
	result := fallbackClassify("The hotel was lovely and the staff were kind")

	if result.IsSpam {
		t.Errorf("expected clean text to pass, got spam")
	}
	if result.Label != LabelHam {
		t.Errorf("expected label %q, got %q", LabelHam, result.Label)
	}
	if result.ToxicityDetected {
		t.Errorf("expected no toxicity")
	}
	if !result.FallbackUsed {
		t.Errorf("expected FallbackUsed to be set")
	}
	if result.ModelUsed != FallbackModel {
		t.Errorf("expected model %q, got %q", FallbackModel, result.ModelUsed)
	}
}

func TestFallbackSpamKeywords(t *testing.T) {
	// Three weight-1 keywords: "click here", "free money", "winner".
	result := fallbackClassify("Click here for free money winner!")

	if !result.IsSpam {
		t.Fatalf("expected spam verdict")
	}
	if result.ToxicityDetected {
		t.Errorf("expected no toxicity for pure spam")
	}
	if math.Abs(result.Confidence-0.6) > 1e-9 {
		t.Errorf("expected confidence 0.6 for 3 hits, got %v", result.Confidence)
	}
}

func TestFallbackSingleKeywordIsNotSpam(t *testing.T) {
	result := fallbackClassify("Please act now before the hotel fills up")

	if result.IsSpam {
		t.Errorf("one weight-1 keyword should not trip the verdict")
	}
}

func TestFallbackToxicKeywords(t *testing.T) {
	result := fallbackClassify("fuck this shit")

	if !result.IsSpam {
		t.Fatalf("expected spam verdict")
	}
	if !result.ToxicityDetected {
		t.Fatalf("expected toxicity detected")
	}
	if result.ToxicType != ToxicProfanity {
		t.Errorf("expected toxic type %q, got %q", ToxicProfanity, result.ToxicType)
	}
	// Keyword and pattern hits cap out well above the 0.9 ceiling.
	if result.Confidence != 0.9 {
		t.Errorf("expected confidence capped at 0.9, got %v", result.Confidence)
	}
}

func TestFallbackElongationFloorsConfidence(t *testing.T) {
	// "fuuuuck" dodges the keyword list but matches the elongation pattern.
	result := fallbackClassify("fuuuuck this")

	if !result.IsSpam {
		t.Fatalf("expected spam verdict")
	}
	if !result.ToxicityDetected {
		t.Fatalf("expected toxicity detected")
	}
	if result.Confidence != 0.8 {
		t.Errorf("expected toxic confidence floor 0.8, got %v", result.Confidence)
	}
}

func TestHasToxicPattern(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"fuuuuck", true},
		{"shiiiiit", true},
		{"FuUuCk", true},
		{"a pleasant afternoon walk", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := hasToxicPattern(tt.text); got != tt.want {
			t.Errorf("hasToxicPattern(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
