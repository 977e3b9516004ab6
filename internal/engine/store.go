package engine

import (
	"sync"
	"time"

	"github.com/vigilix/insightd/internal/insight"
)

// insightStore holds the most recent insight per id and evicts stale
// entries. It carries its own lock because TTL cleanup runs on a timer
// goroutine, independently of the engine's dispatch path.
type insightStore struct {
	mu        sync.RWMutex
	insights  map[string]insight.Insight
	retention time.Duration
}

func newInsightStore(retention time.Duration) *insightStore {
	return &insightStore{
		insights:  make(map[string]insight.Insight),
		retention: retention,
	}
}

// Put stores an insight, overwriting any previous insight with the
// same id.
func (s *insightStore) Put(ins insight.Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[ins.ID] = ins
}

// Get returns the insight with the given id.
func (s *insightStore) Get(id string) (insight.Insight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ins, ok := s.insights[id]
	return ins, ok
}

// Query returns all stored insights matching the filter. Order is
// stable only within a single snapshot.
func (s *insightStore) Query(f *insight.Filter, now time.Time) []insight.Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []insight.Insight
	for _, ins := range s.insights {
		if f.Matches(ins, now) {
			matched = append(matched, ins)
		}
	}
	return matched
}

// Len reports the number of stored insights.
func (s *insightStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.insights)
}

// Clear removes every stored insight.
func (s *insightStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = make(map[string]insight.Insight)
}

// Cleanup removes insights whose age strictly exceeds the retention
// window, plus any whose ValidUntil has passed. An insight exactly at
// the retention boundary is kept. Returns the number removed.
func (s *insightStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ins := range s.insights {
		expired := now.Sub(ins.GeneratedAt) > s.retention
		if !expired && ins.ValidUntil != nil && now.After(*ins.ValidUntil) {
			expired = true
		}
		if expired {
			delete(s.insights, id)
			removed++
		}
	}
	return removed
}
