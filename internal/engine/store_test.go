package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilix/insightd/internal/insight"
)

func TestStore_PutOverwritesById(t *testing.T) {
	s := newInsightStore(24 * time.Hour)

	first := testInsight("ins-1", 50)
	s.Put(first)

	second := testInsight("ins-1", 90)
	s.Put(second)

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get("ins-1")
	require.True(t, ok)
	assert.Equal(t, 90.0, got.Confidence)
}

func TestStore_QueryAppliesFilter(t *testing.T) {
	s := newInsightStore(24 * time.Hour)
	s.Put(testInsight("low-conf", 40))
	s.Put(testInsight("high-conf", 85))

	trend := testInsight("trend", 85)
	trend.Kind = insight.KindTrend
	s.Put(trend)

	min := 70.0
	matched := s.Query(&insight.Filter{MinConfidence: &min}, time.Now())
	assert.Len(t, matched, 2)

	matched = s.Query(&insight.Filter{
		Kinds:         []insight.InsightKind{insight.KindTrend},
		MinConfidence: &min,
	}, time.Now())
	require.Len(t, matched, 1)
	assert.Equal(t, "trend", matched[0].ID)

	all := s.Query(nil, time.Now())
	assert.Len(t, all, 3)
}

func TestStore_CleanupEvictsOnlyExpired(t *testing.T) {
	retention := time.Hour
	s := newInsightStore(retention)
	now := time.Now()

	fresh := testInsight("fresh", 80)
	fresh.GeneratedAt = now.Add(-30 * time.Minute)
	s.Put(fresh)

	// Exactly at the boundary: age == retention is kept.
	boundary := testInsight("boundary", 80)
	boundary.GeneratedAt = now.Add(-retention)
	s.Put(boundary)

	stale := testInsight("stale", 80)
	stale.GeneratedAt = now.Add(-retention - time.Minute)
	s.Put(stale)

	removed := s.Cleanup(now)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, s.Len())

	_, ok := s.Get("stale")
	assert.False(t, ok)
	_, ok = s.Get("boundary")
	assert.True(t, ok)
}

func TestStore_CleanupHonorsValidUntil(t *testing.T) {
	s := newInsightStore(24 * time.Hour)
	now := time.Now()

	expired := testInsight("expired", 80)
	past := now.Add(-time.Minute)
	expired.ValidUntil = &past
	s.Put(expired)

	valid := testInsight("valid", 80)
	future := now.Add(time.Hour)
	valid.ValidUntil = &future
	s.Put(valid)

	removed := s.Cleanup(now)
	assert.Equal(t, 1, removed)
	_, ok := s.Get("valid")
	assert.True(t, ok)
}

func TestStore_Clear(t *testing.T) {
	s := newInsightStore(24 * time.Hour)
	s.Put(testInsight("a", 80))
	s.Put(testInsight("b", 80))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Query(nil, time.Now()))
}
