// Package broker implements the pub/sub core (spec.md §4.4): the eight
// operations driving the four registries in internal/registry, dispatched
// through the internal/delivery seam. HTTP concerns live entirely in
// internal/httpapi; nothing here imports net/http.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adred-codev/pubsub-broker/internal/delivery"
	"github.com/adred-codev/pubsub-broker/internal/headers"
	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/metrics"
	"github.com/adred-codev/pubsub-broker/internal/model"
	"github.com/adred-codev/pubsub-broker/internal/registry"
	"github.com/adred-codev/pubsub-broker/internal/workerpool"
	"github.com/rs/zerolog"
)

// NotFoundError is returned by TouchPublisher against an unknown id
// (spec.md §4.4 touch_publisher, §7 UnknownPublisher).
type NotFoundError struct {
	ID ids.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Touching unknown publisher with id: %s", e.ID)
}

// Broker is the process-wide pub/sub handle (spec.md §9 "Global mutable
// state"): constructed once at startup and threaded into every HTTP
// handler, never reached through ambient globals.
type Broker struct {
	pending    *registry.Pending
	active     *registry.Active
	publishers *registry.Publishers
	retained   *registry.Retained

	client delivery.Client
	pool   *workerpool.Pool
	m      *metrics.Metrics
	logger zerolog.Logger

	now func() time.Time
}

// New constructs a Broker with empty registries.
func New(client delivery.Client, pool *workerpool.Pool, m *metrics.Metrics, logger zerolog.Logger) *Broker {
	return &Broker{
		pending:    registry.NewPending(),
		active:     registry.NewActive(),
		publishers: registry.NewPublishers(),
		retained:   registry.NewRetained(),
		client:     client,
		pool:       pool,
		m:          m,
		logger:     logger,
		now:        time.Now,
	}
}

// Client returns the broker's delivery client, letting a test retrieve the
// underlying recording double for assertions (spec.md §9 "Dynamic dispatch
// on delivery client").
func (b *Broker) Client() delivery.Client {
	return b.client
}

// Subscribe allocates a fresh Identifier and registers callback/topic as
// pending (spec.md §4.4 subscribe). Always succeeds.
func (b *Broker) Subscribe(callback, topic string) ids.ID {
	id := ids.New()
	b.pending.Insert(model.Subscriber{ID: id, Callback: callback, Topic: topic})
	b.m.SubscribeTotal.Inc()
	b.refreshSubscriberGauges()
	return id
}

// TouchSubscriber promotes a pending subscriber to active and replays every
// retained message for its topic, or — on a repeat touch of an
// already-active id — re-appends a duplicate active entry and replays
// again (spec.md §4 state machine, §9 Open Question 2). An unknown id is a
// no-op; touch_subscriber is always idempotent-successful to the caller.
func (b *Broker) TouchSubscriber(ctx context.Context, id ids.ID) {
	b.m.TouchTotal.Inc()

	s, ok := b.pending.Remove(id)
	if !ok {
		s, ok = b.active.Find(id)
	}
	if !ok {
		return
	}

	b.active.Append(s)
	b.refreshSubscriberGauges()

	for _, msg := range b.retained.SnapshotTopic(s.Topic) {
		err := b.pool.Submit(func() error {
			return b.client.PublishMessage(ctx, s.Callback, msg)
		})
		b.recordDelivery("publish", err)
		if err != nil {
			b.logger.Warn().
				Str("subscriber_id", s.ID.String()).
				Str("topic", s.Topic).
				Err(err).
				Msg("replay delivery failed, auto-unsubscribing")
			b.active.Remove(s.ID)
			b.m.AutoUnsubscribesTotal.Inc()
			b.refreshSubscriberGauges()
		}
	}
}

// Unsubscribe removes every active occurrence of id. Pending is untouched.
// Idempotent; unknown id is a no-op (spec.md §4.4 unsubscribe).
func (b *Broker) Unsubscribe(id ids.ID) {
	b.active.Remove(id)
	b.m.UnsubscribeTotal.Inc()
	b.refreshSubscriberGauges()
}

// AddPublisher inserts or replaces the publisher under id, resetting
// last_seen (spec.md §4.4 add_publisher). Always succeeds.
func (b *Broker) AddPublisher(id ids.ID) {
	b.publishers.Add(id, b.now())
	b.refreshPublisherGauge()
}

// TouchPublisher advances last_seen for a known publisher, or reports
// NotFoundError (spec.md §4.4 touch_publisher).
func (b *Broker) TouchPublisher(id ids.ID) error {
	if !b.publishers.Touch(id, b.now()) {
		return &NotFoundError{ID: id}
	}
	return nil
}

// RemovePublisher deletes the publisher and retracts every message it has
// retained, notifying active subscribers of each topic the publisher had
// retained into (spec.md §4.4 remove_publisher). Delivery failures are
// logged only; remove_publisher never mutates active membership.
func (b *Broker) RemovePublisher(ctx context.Context, id ids.ID) {
	if !b.publishers.Remove(id) {
		return
	}
	b.refreshPublisherGauge()

	removedByTopic := b.retained.DeletePublisher(id)
	b.refreshRetainedGauge()

	for topic, msgs := range removedByTopic {
		subs := b.active.Snapshot(topic)
		if len(subs) == 0 {
			continue
		}
		for _, msg := range msgs {
			b.fanOutRemove(ctx, subs, msg.Retraction())
		}
	}
}

// Publish decodes the "info-" header namespace, retains the message under
// an unknown-publisher no-op guard, and fans it out to every subscriber
// active on the topic at publish time (spec.md §4.4 publish). A failed
// publish-path delivery auto-unsubscribes the affected subscriber.
func (b *Broker) Publish(ctx context.Context, msg model.Message) {
	msg.Headers = headers.Decode(msg.Headers)

	if !b.publishers.Exists(msg.Publisher) {
		return
	}
	b.publishers.Touch(msg.Publisher, b.now())
	b.retained.Put(msg)
	b.m.PublishTotal.Inc()
	b.refreshRetainedGauge()

	subs := b.active.Snapshot(msg.Topic)
	if len(subs) == 0 {
		return
	}

	failed := b.fanOutPublish(ctx, subs, msg)
	if len(failed) == 0 {
		return
	}
	toRemove := make(map[ids.ID]struct{}, len(failed))
	for _, id := range failed {
		toRemove[id] = struct{}{}
	}
	b.active.RemoveMany(toRemove)
	b.m.AutoUnsubscribesTotal.Add(float64(len(failed)))
	b.refreshSubscriberGauges()
}

// Retract deletes a retained message and notifies active subscribers with
// an empty-body retraction (spec.md §4.4 retract). Delivery failures are
// logged only — this is the documented asymmetry with Publish (spec.md §9
// Open Question 3).
func (b *Broker) Retract(ctx context.Context, msg model.Message) {
	if !b.publishers.Exists(msg.Publisher) {
		return
	}
	b.publishers.Touch(msg.Publisher, b.now())
	b.retained.Delete(msg.Topic, msg.Publisher, msg.Subject)
	b.m.RetractTotal.Inc()
	b.refreshRetainedGauge()

	subs := b.active.Snapshot(msg.Topic)
	if len(subs) == 0 {
		return
	}
	b.fanOutRemove(ctx, subs, msg.Retraction())
}

// fanOutPublish dispatches msg to every subscriber in subs concurrently
// through the worker pool (spec.md §5 "Suspension and blocking" — delivery
// never runs under a registry lock) and returns the ids whose delivery
// failed.
func (b *Broker) fanOutPublish(ctx context.Context, subs []model.Subscriber, msg model.Message) []ids.ID {
	type result struct {
		id  ids.ID
		err error
	}
	results := make(chan result, len(subs))
	var wg sync.WaitGroup
	for _, s := range subs {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.pool.Submit(func() error {
				return b.client.PublishMessage(ctx, s.Callback, msg)
			})
			results <- result{id: s.ID, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var failed []ids.ID
	for r := range results {
		b.recordDelivery("publish", r.err)
		if r.err != nil {
			b.logger.Warn().
				Str("subscriber_id", r.id.String()).
				Str("topic", msg.Topic).
				Err(r.err).
				Msg("publish delivery failed, auto-unsubscribing")
			failed = append(failed, r.id)
		}
	}
	return failed
}

// fanOutRemove dispatches a retraction to every subscriber in subs
// concurrently. Failures are logged only; nothing is returned and active
// membership is never changed (retract-path policy).
func (b *Broker) fanOutRemove(ctx context.Context, subs []model.Subscriber, retraction model.Message) {
	var wg sync.WaitGroup
	for _, s := range subs {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.pool.Submit(func() error {
				return b.client.RemoveMessage(ctx, s.Callback, retraction)
			})
			b.recordDelivery("remove", err)
			if err != nil {
				b.logger.Warn().
					Str("subscriber_id", s.ID.String()).
					Str("topic", retraction.Topic).
					Err(err).
					Msg("retraction delivery failed")
			}
		}()
	}
	wg.Wait()
}

func (b *Broker) recordDelivery(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	b.m.DeliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

func (b *Broker) refreshSubscriberGauges() {
	b.m.SubscribersPending.Set(float64(b.pending.Len()))
	b.m.SubscribersActive.Set(float64(b.active.TotalLen()))
}

func (b *Broker) refreshPublisherGauge() {
	b.m.Publishers.Set(float64(b.publishers.Len()))
}

func (b *Broker) refreshRetainedGauge() {
	b.m.RetainedMessages.Set(float64(b.retained.Count()))
}
