package classifier

import (
	"regexp"
	"strings"
	"time"
)

// FallbackModel is reported in Result.ModelUsed when both external
// classifiers were unreachable and the keyword heuristic produced the verdict.
const FallbackModel = "enhanced-fallback-detection"

// spamKeywords are weight-1 hits. The list mixes English and Vietnamese
// because the platform serves both audiences.
var spamKeywords = []string{
	"click here", "free money", "winner", "congratulations",
	"urgent", "limited time", "act now", "call now",
	"đây là link", "miễn phí", "quà tặng", "khuyến mãi",
	"http://", "https://", "bit.ly", "tinyurl",
}

// toxicKeywords are weight-2 hits: obvious profanity in either language.
var toxicKeywords = []string{
	"fuck", "shit", "damn", "bitch", "asshole", "bastard",
	"đồ chó", "đĩ", "mẹ kiếp", "cút", "đm", "dmm",
	"vl", "vcl", "đcm", "cmm", "clm",
	"đồ ngu", "đồ khốn", "chết tiệt", "khốn nạn",
}

// toxicPatterns catch elongated-letter evasions like "fuuuuck" or "shiiiit".
// Compiled once at package init and reused for every call.
var toxicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)f+u+c+k+`),
	regexp.MustCompile(`(?i)s+h+i+t+`),
	regexp.MustCompile(`(?i)b+i+t+c+h+`),
	regexp.MustCompile(`(?i)a+s+s+h+o+l+e+`),
	regexp.MustCompile(`(?i)đ+ồ+\s*c+h+ó+`),
	regexp.MustCompile(`(?i)m+ẹ+\s*k+i+ế+p+`),
	regexp.MustCompile(`(?i)c+ú+t+`),
}

// fallbackClassify is the deterministic heuristic used when both external
// classifiers are unavailable. Spam keywords count 1, toxic keywords and
// elongation patterns count 2. Confidence floors at 0.8 whenever any toxic
// signal fires.
func fallbackClassify(text string) *Result {
	lower := strings.ToLower(text)

	spamScore := 0
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			spamScore++
		}
	}

	toxicScore := 0
	for _, kw := range toxicKeywords {
		if strings.Contains(lower, kw) {
			toxicScore += 2
		}
	}

	patternScore := 0
	for _, p := range toxicPatterns {
		if p.MatchString(text) {
			patternScore += 2
		}
	}

	total := spamScore + toxicScore + patternScore
	toxic := toxicScore > 0 || patternScore > 0
	isSpam := total >= 2 || toxicScore >= 2

	confidence := float64(total) / 5
	if confidence > 0.9 {
		confidence = 0.9
	}
	if toxic && confidence < 0.8 {
		confidence = 0.8
	}

	label := LabelHam
	if isSpam {
		label = LabelSpam
	}

	toxicType := ToxicNone
	if toxic {
		toxicType = ToxicProfanity
	}

	spamProb := confidence
	if !isSpam {
		spamProb = 1 - confidence
	}

	return &Result{
		IsSpam:     isSpam,
		Label:      label,
		Confidence: confidence,
		ModelUsed:  FallbackModel,
		Scores: []Score{
			{Label: "spam", Score: spamProb},
			{Label: "ham", Score: 1 - spamProb},
		},
		ToxicityDetected: toxic,
		ToxicType:        toxicType,
		FallbackUsed:     true,
		ProcessedAt:      time.Now(),
	}
}

// hasToxicKeyword reports whether text contains an entry from the toxic
// keyword list.
func hasToxicKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range toxicKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasToxicPattern reports whether an elongated-obscenity pattern matches.
func hasToxicPattern(text string) bool {
	for _, p := range toxicPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
