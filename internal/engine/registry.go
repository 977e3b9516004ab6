package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

// NotifyFunc receives newly produced (or replayed) insights. It is
// called from the engine's completion path, so it should return
// quickly; a panicking callback is isolated and logged.
type NotifyFunc func(insights []insight.Insight)

type subscription struct {
	id     string
	notify NotifyFunc
	filter *insight.Filter
}

// subscriptionRegistry fans newly produced insights out to registered
// observers. Each observer may carry a filter; failures in one
// observer's callback never prevent delivery to the others.
type subscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*subscription
	log  *logger.Logger
}

func newSubscriptionRegistry(log *logger.Logger) *subscriptionRegistry {
	return &subscriptionRegistry{
		subs: make(map[string]*subscription),
		log:  log,
	}
}

// Subscribe registers an observer and returns its subscription id.
func (r *subscriptionRegistry) Subscribe(notify NotifyFunc, filter *insight.Filter) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.subs[id] = &subscription{id: id, notify: notify, filter: filter}
	r.mu.Unlock()

	r.log.Debug("subscriber registered",
		logger.Field{Key: "subscription_id", Value: id},
		logger.Field{Key: "filtered", Value: filter != nil})
	return id
}

// Unsubscribe removes an observer. Notifications already dispatched
// are unaffected.
func (r *subscriptionRegistry) Unsubscribe(id string) {
	r.mu.Lock()
	_, ok := r.subs[id]
	delete(r.subs, id)
	r.mu.Unlock()

	if ok {
		r.log.Debug("subscriber removed",
			logger.Field{Key: "subscription_id", Value: id})
	}
}

// NotifyAll delivers the matching subset of newInsights to every live
// subscriber.
func (r *subscriptionRegistry) NotifyAll(newInsights []insight.Insight) {
	if len(newInsights) == 0 {
		return
	}

	r.mu.RLock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	now := time.Now()
	for _, sub := range subs {
		matching := sub.filter.Apply(newInsights, now)
		if len(matching) == 0 {
			continue
		}
		r.deliver(sub, matching)
	}
}

// Replay synchronously delivers already-stored insights to a single
// subscriber, used to catch a late joiner up at subscribe time. The
// insights are assumed to match the subscriber's filter already.
func (r *subscriptionRegistry) Replay(id string, insights []insight.Insight) {
	r.mu.RLock()
	sub, ok := r.subs[id]
	r.mu.RUnlock()

	if !ok || len(insights) == 0 {
		return
	}
	r.deliver(sub, insights)
}

// Count reports the number of live subscriptions.
func (r *subscriptionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// deliver invokes one subscriber callback with panic isolation.
func (r *subscriptionRegistry) deliver(sub *subscription, insights []insight.Insight) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("subscriber callback panicked",
				fmt.Errorf("panic: %v", rec),
				logger.Field{Key: "subscription_id", Value: sub.id})
		}
	}()

	sub.notify(insights)
}
