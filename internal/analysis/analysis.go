// Package analysis scores submission text for content-level risk signals:
// links, contact details, shouting, character floods, and suspicious
// marketing phrases. The resulting 0-100 score feeds the moderation
// decision engine alongside classifier confidence and user history.
package analysis

import (
	"regexp"
	"strings"
)

// Compiled once at package init and reused for every call, so Analyze is
// safe for concurrent use.
var (
	linkPattern    = regexp.MustCompile(`https?://`)
	emailPattern   = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern   = regexp.MustCompile(`(\+\d{1,3}[- ]?)?\d{10,}`)
	capsPattern    = regexp.MustCompile(`[A-Z]{3,}`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()]{3,}`)
)

// suspiciousKeywords are marketing/scam phrases that raise the risk score by
// 10 points each.
var suspiciousKeywords = []string{
	"click here", "free money", "urgent", "limited time",
	"call now", "act now", "guaranteed", "winner",
	"đây là link", "miễn phí", "quà tặng", "khuyến mãi",
	"gọi ngay", "cơ hội", "giới hạn", "chiến thắng",
}

// Content is the outcome of analysing one submission's text. The boolean
// signals are exposed individually because the decision engine derives flags
// from them, not only from the aggregate score.
type Content struct {
	Length             int
	WordCount          int
	HasLinks           bool
	HasEmails          bool
	HasPhones          bool
	HasCapsRun         bool
	HasSpecialBurst    bool
	Repetitive         bool
	SuspiciousKeywords []string
	RiskScore          int
}

// Analyze computes all content risk signals for text and the aggregate
// 0-100 risk score.
func Analyze(text string) Content {
	c := Content{
		Length:             len(text),
		WordCount:          len(strings.Fields(text)),
		HasLinks:           linkPattern.MatchString(text),
		HasEmails:          emailPattern.MatchString(text),
		HasPhones:          phonePattern.MatchString(text),
		HasCapsRun:         capsPattern.MatchString(text),
		HasSpecialBurst:    specialPattern.MatchString(text),
		Repetitive:         isRepetitive(text),
		SuspiciousKeywords: matchKeywords(text),
	}
	c.RiskScore = riskScore(c)
	return c
}

// isRepetitive reports whether a single word makes up more than 30% of the
// text's tokens.
func isRepetitive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return false
	}

	counts := make(map[string]int, len(words))
	max := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > max {
			max = counts[w]
		}
	}
	return float64(max) > float64(len(words))*0.3
}

func matchKeywords(text string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range suspiciousKeywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// riskScore aggregates the individual signals into a 0-100 score. Weights
// mirror how strongly each signal correlates with spam on this platform:
// contact details weigh more than formatting noise.
func riskScore(c Content) int {
	risk := 0

	if c.Length < 10 {
		risk += 20
	}
	if c.Length > 1000 {
		risk += 15
	}
	if c.HasLinks {
		risk += 25
	}
	if c.HasEmails {
		risk += 30
	}
	if c.HasPhones {
		risk += 35
	}
	if c.HasCapsRun {
		risk += 15
	}
	if c.HasSpecialBurst {
		risk += 10
	}
	if c.Repetitive {
		risk += 20
	}
	risk += len(c.SuspiciousKeywords) * 10

	if risk > 100 {
		risk = 100
	}
	return risk
}
