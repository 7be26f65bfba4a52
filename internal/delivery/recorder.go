package delivery

import (
	"context"
	"sync"

	"github.com/adred-codev/pubsub-broker/internal/model"
)

// Call records one PublishMessage or RemoveMessage invocation.
type Call struct {
	Kind     string // "publish" or "remove"
	Callback string
	Message  model.Message
}

// Recorder is the in-memory delivery-client double named in spec.md §4.2
// and exercised by spec.md §8 scenario 5. It records every call it
// receives and can be configured to fail a fixed number of upcoming
// PublishMessage calls, for scenario 6 (auto-unsubscribe on delivery
// failure).
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	failNextPublish int
	failNextRemove  int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailNextPublish makes the next n calls to PublishMessage return a
// delivery Error instead of recording success.
func (r *Recorder) FailNextPublish(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNextPublish = n
}

// FailNextRemove makes the next n calls to RemoveMessage return a
// delivery Error instead of recording success.
func (r *Recorder) FailNextRemove(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNextRemove = n
}

// PublishMessage implements Client.
func (r *Recorder) PublishMessage(_ context.Context, callback string, msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: "publish", Callback: callback, Message: msg.Clone()})
	if r.failNextPublish > 0 {
		r.failNextPublish--
		return &Error{StatusCode: 500, Reason: "recorder configured to fail"}
	}
	return nil
}

// RemoveMessage implements Client.
func (r *Recorder) RemoveMessage(_ context.Context, callback string, msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: "remove", Callback: callback, Message: msg.Clone()})
	if r.failNextRemove > 0 {
		r.failNextRemove--
		return &Error{StatusCode: 500, Reason: "recorder configured to fail"}
	}
	return nil
}

// Calls returns a copy of every call recorded so far, in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears recorded calls and pending failure configuration.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.failNextPublish = 0
	r.failNextRemove = 0
}
