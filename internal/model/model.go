// Package model holds the broker's value types (spec.md §3). None of these
// types perform I/O or locking; that discipline lives in internal/registry.
package model

import (
	"time"

	"github.com/adred-codev/pubsub-broker/internal/ids"
)

// Subscriber is immutable after creation: id, callback and topic never
// change once subscribe() has allocated it.
type Subscriber struct {
	ID       ids.ID
	Callback string
	Topic    string
}

// Publisher is mutable only through Touch.
type Publisher struct {
	ID       ids.ID
	LastSeen time.Time
}

// Touch advances LastSeen to now. Called on every publish, retract, or
// explicit touch_publisher.
func (p *Publisher) Touch(now time.Time) {
	p.LastSeen = now
}

// Message is immutable; mutation is expressed by replacement in the
// retained index (spec.md §3 "Message").
type Message struct {
	Publisher ids.ID
	Topic     string
	Subject   string
	Headers   map[string]string
	Body      []byte
}

// Clone returns a deep copy safe to hand out across a registry lock
// boundary — the registries return clones so a caller can't mutate state
// out from under a concurrent reader (spec.md §4.3 "Lookups return a
// defensive clone").
func (m Message) Clone() Message {
	headers := make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = v
	}
	body := make([]byte, len(m.Body))
	copy(body, m.Body)
	return Message{
		Publisher: m.Publisher,
		Topic:     m.Topic,
		Subject:   m.Subject,
		Headers:   headers,
		Body:      body,
	}
}

// Retraction builds the zero-body message used to notify subscribers that
// m has been withdrawn (spec.md §4.4 retract/remove_publisher).
func (m Message) Retraction() Message {
	r := m.Clone()
	r.Body = nil
	return r
}
