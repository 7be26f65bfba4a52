package registry

import (
	"sync"

	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Pending holds subscribers that have registered but not yet been
// confirmed by a first touch (spec.md §3 registry 1). One lock, as
// required by the canonical ordering in spec.md §5.
type Pending struct {
	mu sync.RWMutex
	m  map[ids.ID]model.Subscriber
}

// NewPending returns an empty Pending registry.
func NewPending() *Pending {
	return &Pending{m: make(map[ids.ID]model.Subscriber)}
}

// Insert adds s under s.ID. Always succeeds (subscribe() is total).
func (p *Pending) Insert(s model.Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[s.ID] = s
}

// Remove deletes id and returns the removed Subscriber and whether it was
// present. Used by touch_subscriber to atomically promote pending →
// active.
func (p *Pending) Remove(id ids.ID) (model.Subscriber, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.m[id]
	if ok {
		delete(p.m, id)
	}
	return s, ok
}

// Len reports the number of pending subscribers. Drives the
// pubsub_subscribers_pending gauge.
func (p *Pending) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

// Contains reports whether id is currently pending.
func (p *Pending) Contains(id ids.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.m[id]
	return ok
}
