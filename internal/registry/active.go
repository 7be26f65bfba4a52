package registry

import (
	"sync"

	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Active holds subscribers confirmed for a topic (spec.md §3 registry 2).
// The sequence for a topic may contain the same subscriber id twice — a
// duplicate touch_subscriber on an already-active id re-appends, a
// deliberate divergence documented in spec.md §9 Open Question 2 and
// preserved here unmodified.
type Active struct {
	mu sync.RWMutex
	m  map[string][]model.Subscriber
}

// NewActive returns an empty Active registry.
func NewActive() *Active {
	return &Active{m: make(map[string][]model.Subscriber)}
}

// Append adds s to the end of active[s.Topic], creating the topic key if
// needed.
func (a *Active) Append(s model.Subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[s.Topic] = append(a.m[s.Topic], s)
}

// Snapshot returns a defensive copy of active[topic] for dispatch. The
// caller must never dispatch while holding a.mu (spec.md §5).
func (a *Active) Snapshot(topic string) []model.Subscriber {
	a.mu.RLock()
	defer a.mu.RUnlock()
	src := a.m[topic]
	out := make([]model.Subscriber, len(src))
	copy(out, src)
	return out
}

// Remove deletes every occurrence of id across every topic. Idempotent:
// removing an id that is not present is a no-op (spec.md §4.4
// unsubscribe).
func (a *Active) Remove(id ids.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for topic, subs := range a.m {
		filtered := subs[:0:0]
		for _, s := range subs {
			if s.ID != id {
				filtered = append(filtered, s)
			}
		}
		a.m[topic] = filtered
	}
}

// RemoveMany removes every id in ids from every topic in a single
// critical section — used after a fan-out round to batch the
// failure-driven membership mutation of spec.md §4.4.
func (a *Active) RemoveMany(toRemove map[ids.ID]struct{}) {
	if len(toRemove) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for topic, subs := range a.m {
		filtered := subs[:0:0]
		for _, s := range subs {
			if _, drop := toRemove[s.ID]; !drop {
				filtered = append(filtered, s)
			}
		}
		a.m[topic] = filtered
	}
}

// Len reports the number of active entries (including duplicates) for a
// topic. Test/diagnostic use only.
func (a *Active) Len(topic string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.m[topic])
}

// TotalLen reports the number of active entries across every topic,
// including duplicates. Used to drive the pubsub_subscribers_active gauge.
func (a *Active) TotalLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	total := 0
	for _, subs := range a.m {
		total += len(subs)
	}
	return total
}

// Find returns the first active entry matching id, across every topic.
// touch_subscriber uses this to recover a subscriber's callback and topic
// on a repeat touch: spec.md §4.4 step 1 only removes id from pending,
// but §4 "State machine" is explicit that re-touching an already-active
// id still re-appends a duplicate entry (Open Question 2), so the broker
// must be able to locate that subscriber's identity after its pending
// entry is long gone.
func (a *Active) Find(id ids.ID) (model.Subscriber, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, subs := range a.m {
		for _, s := range subs {
			if s.ID == id {
				return s, true
			}
		}
	}
	return model.Subscriber{}, false
}
