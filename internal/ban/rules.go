package ban

import "time"

// ViolationWindow is the rolling window in which violations count toward
// escalation. Older violations age out.
const ViolationWindow = 30 * 24 * time.Hour

// Rule maps a violation count threshold to a ban outcome. DurationHours is
// zero for permanent rules.
type Rule struct {
	Violations    int
	DurationHours int
	Severity      BanSeverity
}

// Escalation tables per violation family. Thresholds form a non-decreasing
// staircase; toxic content escalates faster than spam. Violation families
// without their own table use the spam table.
var escalationRules = map[ViolationType][]Rule{
	ViolationSpam: {
		{Violations: 3, DurationHours: 24, Severity: BanTemporary},
		{Violations: 6, DurationHours: 72, Severity: BanTemporary},
		{Violations: 10, DurationHours: 168, Severity: BanTemporary},
		{Violations: 15, DurationHours: 720, Severity: BanTemporary},
		{Violations: 20, DurationHours: 0, Severity: BanPermanent},
	},
	ViolationToxic: {
		{Violations: 2, DurationHours: 24, Severity: BanTemporary},
		{Violations: 4, DurationHours: 72, Severity: BanTemporary},
		{Violations: 7, DurationHours: 168, Severity: BanTemporary},
		{Violations: 10, DurationHours: 720, Severity: BanTemporary},
		{Violations: 12, DurationHours: 0, Severity: BanPermanent},
	},
}

// applicableRule returns the highest-threshold rule the count satisfies for
// the given violation family, or false if the count is below every threshold.
func applicableRule(vtype ViolationType, count int) (Rule, bool) {
	rules, ok := escalationRules[vtype]
	if !ok {
		rules = escalationRules[ViolationSpam]
	}

	var matched Rule
	found := false
	for _, r := range rules {
		if count >= r.Violations {
			matched = r
			found = true
		}
	}
	return matched, found
}
