package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sample(kind InsightKind, confidence float64, age time.Duration) Insight {
	return Insight{
		ID:          "ins",
		Kind:        kind,
		Confidence:  confidence,
		GeneratedAt: time.Now().Add(-age),
	}
}

func TestFilter_NilMatchesEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Matches(sample(KindPattern, 0, 0), time.Now()))
}

func TestFilter_Kinds(t *testing.T) {
	f := &Filter{Kinds: []InsightKind{KindTrend, KindAnomaly}}
	now := time.Now()

	assert.True(t, f.Matches(sample(KindTrend, 50, 0), now))
	assert.False(t, f.Matches(sample(KindPattern, 50, 0), now))
}

func TestFilter_MinConfidence(t *testing.T) {
	min := 70.0
	f := &Filter{MinConfidence: &min}
	now := time.Now()

	assert.True(t, f.Matches(sample(KindPattern, 70, 0), now))
	assert.False(t, f.Matches(sample(KindPattern, 69.9, 0), now))
}

func TestFilter_MaxAgeHours(t *testing.T) {
	maxAge := 1.0
	f := &Filter{MaxAgeHours: &maxAge}
	now := time.Now()

	assert.True(t, f.Matches(sample(KindPattern, 50, 30*time.Minute), now))
	assert.False(t, f.Matches(sample(KindPattern, 50, 2*time.Hour), now))
}

func TestFilter_ConstraintsAreANDed(t *testing.T) {
	min := 70.0
	maxAge := 1.0
	f := &Filter{
		Kinds:         []InsightKind{KindTrend},
		MinConfidence: &min,
		MaxAgeHours:   &maxAge,
	}
	now := time.Now()

	assert.True(t, f.Matches(sample(KindTrend, 80, 10*time.Minute), now))
	assert.False(t, f.Matches(sample(KindTrend, 60, 10*time.Minute), now))
	assert.False(t, f.Matches(sample(KindPattern, 80, 10*time.Minute), now))
	assert.False(t, f.Matches(sample(KindTrend, 80, 2*time.Hour), now))
}

func TestFilter_Apply(t *testing.T) {
	min := 70.0
	f := &Filter{MinConfidence: &min}

	in := []Insight{
		sample(KindPattern, 90, 0),
		sample(KindPattern, 10, 0),
		sample(KindPattern, 75, 0),
	}

	out := f.Apply(in, time.Now())
	assert.Len(t, out, 2)
}

func TestPriority_Weight(t *testing.T) {
	assert.Less(t, PriorityHigh.Weight(), PriorityMedium.Weight())
	assert.Less(t, PriorityMedium.Weight(), PriorityLow.Weight())
	assert.Greater(t, Priority("bogus").Weight(), PriorityLow.Weight())
}

func TestTimeframe_Days(t *testing.T) {
	assert.Equal(t, 7, TimeframeWeek.Days())
	assert.Equal(t, 30, TimeframeMonth.Days())
	assert.Equal(t, 90, TimeframeQuarter.Days())
	assert.Equal(t, 365, TimeframeYear.Days())
	assert.Equal(t, 0, Timeframe("").Days())
}
