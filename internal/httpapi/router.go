package httpapi

import (
	"net/http"

	"github.com/adred-codev/pubsub-broker/internal/broker"
	"github.com/rs/zerolog"
)

// NewRouter builds the complete HTTP surface of spec.md §6: a health root,
// the subscribe/publish route families under prefix, and the Prometheus
// scrape endpoint. Routing uses the standard library's method-and-wildcard
// mux patterns (Go 1.22+) rather than a third-party router — no example in
// the reference corpus reaches for one, every HTTP server there is built
// on a bare http.ServeMux.
func NewRouter(b *broker.Broker, prefix string, metricsHandler http.Handler, logger zerolog.Logger) *http.ServeMux {
	h := NewHandlers(b, logger)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.health)
	mux.HandleFunc("GET "+prefix+"/subscribe/{topic}", h.handleSubscribe)
	mux.HandleFunc("DELETE "+prefix+"/subscribe/{id}", h.handleUnsubscribe)
	mux.HandleFunc("HEAD "+prefix+"/subscribe/{id}", h.handleTouchSubscriber)
	mux.HandleFunc("GET "+prefix+"/publish/{id}", h.handleAddPublisher)
	mux.HandleFunc("DELETE "+prefix+"/publish/{id}", h.handleRemovePublisher)
	mux.HandleFunc("HEAD "+prefix+"/publish/{id}", h.handleTouchPublisher)
	mux.HandleFunc("PUT "+prefix+"/publish/{topic}/{publisher}/{subject}", h.handlePublish)
	mux.HandleFunc("DELETE "+prefix+"/publish/{topic}/{publisher}/{subject}", h.handleRetract)
	mux.Handle("/metrics", metricsHandler)

	return mux
}
