package registry

import (
	"sync"
	"time"

	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Publishers holds known publishers (spec.md §3 registry 3).
type Publishers struct {
	mu sync.RWMutex
	m  map[ids.ID]model.Publisher
}

// NewPublishers returns an empty Publishers registry.
func NewPublishers() *Publishers {
	return &Publishers{m: make(map[ids.ID]model.Publisher)}
}

// Add inserts or replaces the publisher under id with LastSeen set to now
// (spec.md §4.4 add_publisher — re-adding an existing id resets
// LastSeen).
func (p *Publishers) Add(id ids.ID, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[id] = model.Publisher{ID: id, LastSeen: now}
}

// Touch advances LastSeen for id and reports whether the publisher
// exists.
func (p *Publishers) Touch(id ids.ID, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pub, ok := p.m[id]
	if !ok {
		return false
	}
	pub.Touch(now)
	p.m[id] = pub
	return true
}

// Exists reports whether id is a known publisher.
func (p *Publishers) Exists(id ids.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.m[id]
	return ok
}

// Remove deletes id and reports whether it was present.
func (p *Publishers) Remove(id ids.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[id]
	delete(p.m, id)
	return ok
}

// Get returns a copy of the publisher under id.
func (p *Publishers) Get(id ids.ID) (model.Publisher, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pub, ok := p.m[id]
	return pub, ok
}

// Len reports the number of known publishers. Drives the pubsub_publishers
// gauge.
func (p *Publishers) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}
