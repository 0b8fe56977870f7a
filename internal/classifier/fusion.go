package classifier

// minToxicConfidence is the floor applied to the fused confidence whenever a
// toxic signal forces a spam verdict.
const minToxicConfidence = 0.8

// fuse combines the primary spam verdict with the toxicity signal. Toxicity
// can only push the result toward spam, never away from it: a toxic signal is
// a strict superset trigger, so a ham verdict cannot survive it.
//
// ToxicType is taken from whichever signal fired with higher priority:
// toxicity service > keyword list > elongation pattern.
func fuse(primary *Result, toxicity *ToxicityResult, text string) *Result {
	combined := *primary

	if toxicity != nil {
		keywordHit := hasToxicKeyword(text)

		if toxicity.IsToxic || keywordHit || toxicity.ShouldFlag {
			combined.IsSpam = true
			combined.Label = LabelSpam
			combined.Confidence = maxConfidence(combined.Confidence, toxicity.CombinedConfidence)
			combined.ToxicityDetected = true
			combined.ToxicType = toxicType(toxicity, keywordHit)
			combined.ModelUsed = "bert + detoxify + keywords"
		}
		return &combined
	}

	// Toxicity service unavailable: fall back to the local elongation
	// patterns so obvious obscenity evasions still get caught.
	if hasToxicPattern(text) || hasToxicKeyword(text) {
		combined.IsSpam = true
		combined.Label = LabelSpam
		combined.Confidence = maxConfidence(combined.Confidence, 0)
		combined.ToxicityDetected = true
		combined.ToxicType = ToxicProfanity
		combined.ModelUsed = combined.ModelUsed + " + pattern_detection"
	}
	return &combined
}

func toxicType(toxicity *ToxicityResult, keywordHit bool) ToxicType {
	if toxicity.IsToxic && toxicity.ToxicType != ToxicNone {
		return toxicity.ToxicType
	}
	if keywordHit {
		return ToxicProfanity
	}
	if toxicity.ToxicType != ToxicNone {
		return toxicity.ToxicType
	}
	return ToxicProfanity
}

func maxConfidence(values ...float64) float64 {
	max := minToxicConfidence
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
