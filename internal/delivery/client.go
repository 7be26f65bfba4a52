// Package delivery is the broker's only seam onto the network (spec.md
// §4.2, §9 "Dynamic dispatch on delivery client"). The broker depends on
// the Client interface alone; nothing in internal/broker imports
// net/http directly.
package delivery

import (
	"context"
	"fmt"

	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Error carries the non-200 status and reason phrase from a callback
// response (spec.md §4.2). A nil error means the callback returned 200.
type Error struct {
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("callback returned %d: %s", e.StatusCode, e.Reason)
}

// Client dispatches a single message or retraction to a subscriber
// callback. Implementations never hold a reference back to the broker —
// all feedback (auto-unsubscribe on delivery failure) flows through the
// broker re-examining the returned error (spec.md §9 "Cycles in the
// shared graph").
type Client interface {
	// PublishMessage POSTs to "{callback}receive/{topic}/{publisher}/{subject}"
	// with headers=Encode(msg.Headers) and body=msg.Body.
	PublishMessage(ctx context.Context, callback string, msg model.Message) error

	// RemoveMessage DELETEs "{callback}remove/{topic}/{publisher}/{subject}"
	// with headers=Encode(msg.Headers) and an empty body.
	RemoveMessage(ctx context.Context, callback string, msg model.Message) error
}
