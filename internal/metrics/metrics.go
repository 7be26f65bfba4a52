// Package metrics exposes Prometheus counters and gauges for broker
// activity, adapted from the teacher's metrics.go (same library, same
// "/metrics" promhttp.Handler() wiring, renamed from ws_* to pubsub_*
// series for this domain).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every broker Prometheus series. A single instance is
// constructed at startup and threaded into internal/broker.
type Metrics struct {
	SubscribersPending prometheus.Gauge
	SubscribersActive  prometheus.Gauge
	Publishers         prometheus.Gauge
	RetainedMessages   prometheus.Gauge

	SubscribeTotal   prometheus.Counter
	UnsubscribeTotal prometheus.Counter
	TouchTotal       prometheus.Counter

	PublishTotal prometheus.Counter
	RetractTotal prometheus.Counter

	DeliveriesTotal       *prometheus.CounterVec // labels: kind(publish|remove), outcome(ok|fail)
	AutoUnsubscribesTotal prometheus.Counter

	ResourceCPUPercent    prometheus.Gauge
	ResourceMemoryPercent prometheus.Gauge
}

// New registers and returns a fresh Metrics instance against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubscribersPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_subscribers_pending",
			Help: "Current number of subscribers awaiting their first touch.",
		}),
		SubscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_subscribers_active",
			Help: "Current number of confirmed subscriber entries across all topics.",
		}),
		Publishers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_publishers",
			Help: "Current number of known publishers.",
		}),
		RetainedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_retained_messages",
			Help: "Current number of retained messages across all topics.",
		}),
		SubscribeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_subscribe_total",
			Help: "Total number of subscribe calls.",
		}),
		UnsubscribeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_unsubscribe_total",
			Help: "Total number of unsubscribe calls.",
		}),
		TouchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_touch_subscriber_total",
			Help: "Total number of touch_subscriber calls (first touch + heartbeats).",
		}),
		PublishTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_publish_total",
			Help: "Total number of publish calls accepted (known publisher).",
		}),
		RetractTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_retract_total",
			Help: "Total number of retract calls accepted (known publisher).",
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubsub_deliveries_total",
			Help: "Total deliveries attempted, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AutoUnsubscribesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubsub_auto_unsubscribes_total",
			Help: "Total subscribers removed due to a failed publish-path delivery.",
		}),
		ResourceCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_process_cpu_percent",
			Help: "Most recent sampled process CPU percentage.",
		}),
		ResourceMemoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubsub_process_memory_percent",
			Help: "Most recent sampled process memory percentage.",
		}),
	}

	reg.MustRegister(
		m.SubscribersPending, m.SubscribersActive, m.Publishers, m.RetainedMessages,
		m.SubscribeTotal, m.UnsubscribeTotal, m.TouchTotal,
		m.PublishTotal, m.RetractTotal,
		m.DeliveriesTotal, m.AutoUnsubscribesTotal,
		m.ResourceCPUPercent, m.ResourceMemoryPercent,
	)
	return m
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
