// Package httpapi maps the broker's operations onto the HTTP route table
// of spec.md §6. Every handler translates path/header parsing failures
// into the status codes of spec.md §7 and delegates everything else to
// internal/broker; no registry or delivery logic lives here.
package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/adred-codev/pubsub-broker/internal/broker"
	"github.com/adred-codev/pubsub-broker/internal/ids"
	"github.com/adred-codev/pubsub-broker/internal/model"
	"github.com/rs/zerolog"
)

const healthBody = "Hello from Pub-Sub-Server!"

// Handlers holds the dependencies shared by every route.
type Handlers struct {
	broker *broker.Broker
	logger zerolog.Logger
}

// NewHandlers builds a Handlers bound to b.
func NewHandlers(b *broker.Broker, logger zerolog.Logger) *Handlers {
	return &Handlers{broker: b, logger: logger}
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, healthBody)
}

// handleSubscribe serves GET {prefix}/subscribe/{topic} (spec.md §4.4
// subscribe). The callback URL is supplied out-of-band via the Location
// header, mirroring the original implementation's convention.
func (h *Handlers) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	callback := r.Header.Get("Location")
	if callback == "" {
		http.Error(w, "missing required Location header naming the subscriber callback", http.StatusNotFound)
		return
	}

	id := h.broker.Subscribe(callback, topic)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, id.String())
}

// handleUnsubscribe serves DELETE {prefix}/subscribe/{id}.
func (h *Handlers) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.broker.Unsubscribe(id)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, id.String())
}

// handleTouchSubscriber serves HEAD {prefix}/subscribe/{id}. Always 200 for
// a well-formed id, known or not (spec.md §4.4 touch_subscriber is
// idempotent).
func (h *Handlers) handleTouchSubscriber(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.broker.TouchSubscriber(r.Context(), id)
	w.WriteHeader(http.StatusOK)
}

// handleAddPublisher serves GET {prefix}/publish/{id}.
func (h *Handlers) handleAddPublisher(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.broker.AddPublisher(id)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, id.String())
}

// handleRemovePublisher serves DELETE {prefix}/publish/{id}.
func (h *Handlers) handleRemovePublisher(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.broker.RemovePublisher(r.Context(), id)
	w.WriteHeader(http.StatusOK)
}

// handleTouchPublisher serves HEAD {prefix}/publish/{id}.
func (h *Handlers) handleTouchPublisher(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.broker.TouchPublisher(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePublish serves PUT {prefix}/publish/{topic}/{publisher}/{subject}.
func (h *Handlers) handlePublish(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messageFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	msg.Body = body

	h.broker.Publish(r.Context(), msg)
	w.WriteHeader(http.StatusOK)
}

// handleRetract serves DELETE {prefix}/publish/{topic}/{publisher}/{subject}.
func (h *Handlers) handleRetract(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messageFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.broker.Retract(r.Context(), msg)
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) messageFromRequest(r *http.Request) (model.Message, error) {
	publisher, err := ids.Parse(r.PathValue("publisher"))
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		Publisher: publisher,
		Topic:     r.PathValue("topic"),
		Subject:   r.PathValue("subject"),
		Headers:   flattenHeaders(r.Header),
	}, nil
}

// flattenHeaders lowercases every header name (net/http canonicalizes the
// wire form) so the "info-" namespace match in internal/headers is
// case-insensitive to transport, and keeps the first value of any
// repeated header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		out[strings.ToLower(k)] = v[0]
	}
	return out
}
