package insight

import "time"

// Filter selects insights by kind, minimum confidence and maximum age.
// Nil constraint fields mean "no constraint"; provided constraints are
// ANDed together. A nil *Filter matches everything.
type Filter struct {
	Kinds         []InsightKind
	MinConfidence *float64
	MaxAgeHours   *float64
}

// Matches reports whether ins satisfies every provided constraint,
// evaluating age against now.
func (f *Filter) Matches(ins Insight, now time.Time) bool {
	if f == nil {
		return true
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ins.Kind) {
		return false
	}
	if f.MinConfidence != nil && ins.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxAgeHours != nil {
		age := now.Sub(ins.GeneratedAt).Hours()
		if age > *f.MaxAgeHours {
			return false
		}
	}
	return true
}

// Apply returns the subset of insights matching the filter, preserving
// input order.
func (f *Filter) Apply(insights []Insight, now time.Time) []Insight {
	if f == nil {
		return insights
	}
	var matched []Insight
	for _, ins := range insights {
		if f.Matches(ins, now) {
			matched = append(matched, ins)
		}
	}
	return matched
}

func containsKind(kinds []InsightKind, k InsightKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
