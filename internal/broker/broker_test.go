package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/adred-codev/pubsub-broker/internal/delivery"
	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/metrics"
	"github.com/adred-codev/pubsub-broker/internal/model"
	"github.com/adred-codev/pubsub-broker/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestBroker(t *testing.T) (*Broker, *delivery.Recorder) {
	t.Helper()
	rec := delivery.NewRecorder()
	pool := workerpool.New(4, 64, zerolog.Nop())
	t.Cleanup(pool.Stop)
	m := metrics.New(prometheus.NewRegistry())
	return New(rec, pool, m, zerolog.Nop()), rec
}

func TestSubscribeThenTouchPromotesToActive(t *testing.T) {
	b, _ := newTestBroker(t)
	id := b.Subscribe("http://subscriber1:9000/", "mytopic")

	if !b.pending.Contains(id) {
		t.Fatalf("expected id to be pending before touch")
	}
	b.TouchSubscriber(context.Background(), id)

	if b.pending.Contains(id) {
		t.Fatalf("invariant 1 violated: id still pending after touch")
	}
	if b.active.TotalLen() != 1 {
		t.Fatalf("expected exactly one active entry, got %d", b.active.TotalLen())
	}
}

func TestTouchSubscriberUnknownIDIsNoop(t *testing.T) {
	b, rec := newTestBroker(t)
	b.TouchSubscriber(context.Background(), ids.New())

	if b.active.TotalLen() != 0 {
		t.Fatalf("expected no active entries for unknown id")
	}
	if len(rec.Calls()) != 0 {
		t.Fatalf("expected no delivery calls for unknown id")
	}
}

// TestTouchSubscriberOnActiveIDReappends preserves spec.md's Open Question
// 2 behavior: a second touch of an already-active subscriber appends a
// duplicate active entry rather than being a no-op.
func TestTouchSubscriberOnActiveIDReappends(t *testing.T) {
	b, _ := newTestBroker(t)
	id := b.Subscribe("http://subscriber1:9000/", "mytopic")
	ctx := context.Background()

	b.TouchSubscriber(ctx, id)
	b.TouchSubscriber(ctx, id)

	if got := b.active.TotalLen(); got != 2 {
		t.Fatalf("expected duplicate active entry on repeat touch, got %d entries", got)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b, _ := newTestBroker(t)
	id := b.Subscribe("http://subscriber1:9000/", "mytopic")
	ctx := context.Background()
	b.TouchSubscriber(ctx, id)

	b.Unsubscribe(id)
	b.Unsubscribe(id)

	if b.active.TotalLen() != 0 {
		t.Fatalf("expected no active entries after unsubscribe")
	}
}

func TestAddPublisherIdempotentModuloLastSeen(t *testing.T) {
	b, _ := newTestBroker(t)
	id := ids.New()
	b.AddPublisher(id)
	b.AddPublisher(id)

	if !b.publishers.Exists(id) {
		t.Fatalf("expected publisher to exist")
	}
	if b.publishers.Len() != 1 {
		t.Fatalf("expected exactly one publisher entry, got %d", b.publishers.Len())
	}
}

func TestTouchPublisherUnknownReturnsNotFound(t *testing.T) {
	b, _ := newTestBroker(t)
	err := b.TouchPublisher(ids.New())

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTouchPublisherKnownSucceeds(t *testing.T) {
	b, _ := newTestBroker(t)
	id := ids.New()
	b.AddPublisher(id)
	if err := b.TouchPublisher(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublishAgainstUnknownPublisherLeavesRetainedUnchanged(t *testing.T) {
	b, rec := newTestBroker(t)
	msg := model.Message{Publisher: ids.New(), Topic: "mytopic", Subject: "mysubject", Body: []byte("test body")}
	b.Publish(context.Background(), msg)

	if b.retained.Count() != 0 {
		t.Fatalf("invariant 7 violated: retained mutated for unknown publisher")
	}
	if len(rec.Calls()) != 0 {
		t.Fatalf("expected no deliveries for unknown publisher")
	}
}

// TestPublishThenSubscribeFanOut mirrors spec.md scenario S5.
func TestPublishThenSubscribeFanOut(t *testing.T) {
	b, rec := newTestBroker(t)
	ctx := context.Background()
	pub := ids.New()

	b.AddPublisher(pub)
	b.Publish(ctx, model.Message{Publisher: pub, Topic: "mytopic", Subject: "mysubject", Body: []byte("test body")})

	subID := b.Subscribe("http://subscriber1:9000", "mytopic")
	b.TouchSubscriber(ctx, subID)

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one publish_message call, got %d", len(calls))
	}
	c := calls[0]
	if c.Kind != "publish" || c.Callback != "http://subscriber1:9000" || c.Message.Topic != "mytopic" ||
		c.Message.Subject != "mysubject" || string(c.Message.Body) != "test body" {
		t.Fatalf("unexpected call recorded: %+v", c)
	}

	rec.Reset()
	b.RemovePublisher(ctx, pub)

	calls = rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one remove_message call, got %d", len(calls))
	}
	c = calls[0]
	if c.Kind != "remove" || c.Callback != "http://subscriber1:9000" || c.Message.Topic != "mytopic" ||
		c.Message.Subject != "mysubject" || len(c.Message.Body) != 0 {
		t.Fatalf("unexpected retraction call recorded: %+v", c)
	}
}

// TestAutoUnsubscribeOnDeliveryFailure mirrors spec.md scenario S6.
func TestAutoUnsubscribeOnDeliveryFailure(t *testing.T) {
	b, rec := newTestBroker(t)
	ctx := context.Background()
	pub := ids.New()
	b.AddPublisher(pub)

	subID := b.Subscribe("http://subscriber1:9000", "mytopic")
	b.TouchSubscriber(ctx, subID)

	rec.FailNextPublish(1)
	b.Publish(ctx, model.Message{Publisher: pub, Topic: "mytopic", Subject: "s1", Body: []byte("a")})

	if b.active.TotalLen() != 0 {
		t.Fatalf("expected subscriber to be auto-unsubscribed after failed delivery")
	}

	rec.Reset()
	b.Publish(ctx, model.Message{Publisher: pub, Topic: "mytopic", Subject: "s2", Body: []byte("b")})

	if len(rec.Calls()) != 0 {
		t.Fatalf("expected no delivery to a subscriber removed by a prior failure")
	}
}

func TestRetractDeliveryFailureDoesNotMutateMembership(t *testing.T) {
	b, rec := newTestBroker(t)
	ctx := context.Background()
	pub := ids.New()
	b.AddPublisher(pub)

	subID := b.Subscribe("http://subscriber1:9000", "mytopic")
	b.TouchSubscriber(ctx, subID)

	msg := model.Message{Publisher: pub, Topic: "mytopic", Subject: "s1", Body: []byte("a")}
	b.Publish(ctx, msg)

	rec.Reset()
	rec.FailNextRemove(1)
	b.Retract(ctx, msg)

	if b.active.TotalLen() != 1 {
		t.Fatalf("retract-path delivery failure must not mutate active membership (Open Question 3)")
	}
}

func TestRemovePublisherClearsRetainedAcrossTopics(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()
	pub := ids.New()
	b.AddPublisher(pub)

	b.Publish(ctx, model.Message{Publisher: pub, Topic: "t1", Subject: "a", Body: []byte("x")})
	b.Publish(ctx, model.Message{Publisher: pub, Topic: "t2", Subject: "b", Body: []byte("y")})

	b.RemovePublisher(ctx, pub)

	if b.retained.Count() != 0 {
		t.Fatalf("invariant 6 violated: retained entries survive remove_publisher")
	}
	if b.publishers.Exists(pub) {
		t.Fatalf("expected publisher to be removed")
	}
}

func TestReplayDeliversRetainedMessageExactlyOnce(t *testing.T) {
	b, rec := newTestBroker(t)
	ctx := context.Background()
	pub := ids.New()
	b.AddPublisher(pub)
	b.Publish(ctx, model.Message{Publisher: pub, Topic: "mytopic", Subject: "s1", Body: []byte("a")})

	subID := b.Subscribe("http://subscriber1:9000", "mytopic")
	b.TouchSubscriber(ctx, subID)

	count := 0
	for _, c := range rec.Calls() {
		if c.Kind == "publish" && c.Message.Subject == "s1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("invariant 8 violated: expected exactly one replay delivery, got %d", count)
	}
}
