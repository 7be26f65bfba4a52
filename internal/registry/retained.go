package registry

import (
	"sync"

	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Retained is the last-write-wins index of retained messages, keyed
// topic → publisher → subject (spec.md §3 registry 4).
type Retained struct {
	mu sync.RWMutex
	m  map[string]map[ids.ID]map[string]model.Message
}

// NewRetained returns an empty Retained registry.
func NewRetained() *Retained {
	return &Retained{m: make(map[string]map[ids.ID]map[string]model.Message)}
}

// Put writes msg into retained[msg.Topic][msg.Publisher][msg.Subject],
// overwriting any prior value (spec.md §4.4 publish).
func (r *Retained) Put(msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPublisher, ok := r.m[msg.Topic]
	if !ok {
		byPublisher = make(map[ids.ID]map[string]model.Message)
		r.m[msg.Topic] = byPublisher
	}
	bySubject, ok := byPublisher[msg.Publisher]
	if !ok {
		bySubject = make(map[string]model.Message)
		byPublisher[msg.Publisher] = bySubject
	}
	bySubject[msg.Subject] = msg.Clone()
}

// Delete removes retained[topic][publisher][subject] and reports whether
// an entry was present. Intermediate empty maps are left in place, as
// permitted by spec.md §4.4 retract step 3.
func (r *Retained) Delete(topic string, publisher ids.ID, subject string) (model.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPublisher, ok := r.m[topic]
	if !ok {
		return model.Message{}, false
	}
	bySubject, ok := byPublisher[publisher]
	if !ok {
		return model.Message{}, false
	}
	msg, ok := bySubject[subject]
	if ok {
		delete(bySubject, subject)
	}
	return msg, ok
}

// DeletePublisher removes every message retained under publisher across
// every topic and returns the removed messages grouped by topic, for
// remove_publisher's retraction fan-out (spec.md §4.4).
func (r *Retained) DeletePublisher(publisher ids.ID) map[string][]model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := make(map[string][]model.Message)
	for topic, byPublisher := range r.m {
		bySubject, ok := byPublisher[publisher]
		if !ok {
			continue
		}
		msgs := make([]model.Message, 0, len(bySubject))
		for _, msg := range bySubject {
			msgs = append(msgs, msg)
		}
		delete(byPublisher, publisher)
		if len(msgs) > 0 {
			removed[topic] = msgs
		}
	}
	return removed
}

// Count reports the total number of retained messages across every topic,
// publisher and subject. Drives the pubsub_retained_messages gauge.
func (r *Retained) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, byPublisher := range r.m {
		for _, bySubject := range byPublisher {
			total += len(bySubject)
		}
	}
	return total
}

// SnapshotTopic returns a defensive copy of every message retained under
// topic, flattened across publishers and subjects, for touch_subscriber's
// replay (spec.md §4.4). Iteration order across distinct (publisher,
// subject) pairs is unspecified, matching spec.md §4.4's note that tests
// do not assume ordering there.
func (r *Retained) SnapshotTopic(topic string) []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byPublisher, ok := r.m[topic]
	if !ok {
		return nil
	}
	var out []model.Message
	for _, bySubject := range byPublisher {
		for _, msg := range bySubject {
			out = append(out, msg.Clone())
		}
	}
	return out
}
