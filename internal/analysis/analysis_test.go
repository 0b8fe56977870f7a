package analysis

import "testing"

func TestAnalyzeRiskScores(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "plain review",
			text: "We stayed two nights and the view over the bay was wonderful.",
			want: 0,
		},
		{
			name: "very short",
			text: "ok",
			want: 40, // short 20 + single-token repetition 20
		},
		{
			name: "link plus marketing phrase",
			text: "Visit https://example.com and call now for a deal",
			want: 35, // links 25 + one keyword 10
		},
		{
			name: "email and phone",
			text: "contact me at foo@example.com or 0123456789",
			want: 65, // emails 30 + phones 35
		},
		{
			name: "shouting",
			text: "THIS place was great, honestly better than expected",
			want: 15,
		},
		{
			name: "everything at once clamps at 100",
			text: "WIN FREE MONEY!!! click here http://x.co call now urgent act now guaranteed winner foo@bar.com 0123456789",
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			if got.RiskScore != tt.want {
				t.Errorf("Analyze(%q).RiskScore = %d, want %d", tt.text, got.RiskScore, tt.want)
			}
		})
	}
}

func TestAnalyzeSignals(t *testing.T) {
	c := Analyze("Email me at sales@deals.example or call +84 0987654321 NOW!!! https://deals.example")

	if !c.HasLinks {
		t.Errorf("expected link signal")
	}
	if !c.HasEmails {
		t.Errorf("expected email signal")
	}
	if !c.HasPhones {
		t.Errorf("expected phone signal")
	}
	if !c.HasCapsRun {
		t.Errorf("expected caps signal")
	}
	if !c.HasSpecialBurst {
		t.Errorf("expected special-character signal")
	}
}

func TestIsRepetitive(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"buy buy buy buy now please", true},
		{"each word here appears exactly once in this sentence", false},
		{"", false},
		{"spam", true}, // a single word is 100% of the tokens
	}

	for _, tt := range tests {
		if got := isRepetitive(tt.text); got != tt.want {
			t.Errorf("isRepetitive(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestRepetitionRaisesRisk(t *testing.T) {
	c := Analyze("great great great great great hotel")
	if !c.Repetitive {
		t.Fatalf("expected repetition signal")
	}
	if c.RiskScore < 20 {
		t.Errorf("expected at least 20 risk from repetition, got %d", c.RiskScore)
	}
}
