package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adred-codev/pubsub-broker/internal/broker"
	"github.com/adred-codev/pubsub-broker/internal/delivery"
	"github.com/adred-codev/pubsub-broker/internal/metrics"
	"github.com/adred-codev/pubsub-broker/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*httptest.Server, *delivery.Recorder) {
	t.Helper()
	rec := delivery.NewRecorder()
	pool := workerpool.New(4, 64, zerolog.Nop())
	t.Cleanup(pool.Stop)
	m := metrics.New(prometheus.NewRegistry())
	b := broker.New(rec, pool, m, zerolog.Nop())

	mux := NewRouter(b, "/info", metrics.Handler(), zerolog.Nop())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func doRequest(t *testing.T, method, url string, headers map[string]string, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("performing request: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(b)
}

// TestScenarioS1SubscribeReturnsID mirrors spec.md scenario S1.
func TestScenarioS1SubscribeReturnsID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/subscribe/topic1", map[string]string{"Location": "my_location"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if len(body) != 36 {
		t.Fatalf("expected 36-char id, got %q (len %d)", body, len(body))
	}
}

func TestSubscribeWithoutLocationIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/subscribe/topic1", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// TestScenarioS2UnsubscribeEchoesID mirrors spec.md scenario S2.
func TestScenarioS2UnsubscribeEchoesID(t *testing.T) {
	srv, _ := newTestServer(t)
	const id = "355f2e4f-554b-47d7-aca8-122a6cec9f26"

	resp := doRequest(t, http.MethodDelete, srv.URL+"/info/subscribe/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != id {
		t.Fatalf("expected echoed id %q, got %q", id, body)
	}
}

// TestScenarioS3TouchHeartbeatIdempotent mirrors spec.md scenario S3.
func TestScenarioS3TouchHeartbeatIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/subscribe/topic1", map[string]string{"Location": "my_location"}, "")
	id := readBody(t, resp)

	resp = doRequest(t, http.MethodHead, srv.URL+"/info/subscribe/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on first touch, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/info/subscribe/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on unsubscribe, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodHead, srv.URL+"/info/subscribe/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on touch of unknown subscriber, got %d", resp.StatusCode)
	}
}

// TestScenarioS4PublisherLifecycle mirrors spec.md scenario S4.
func TestScenarioS4PublisherLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	const id = "355f2e4f-554b-47d7-aca8-122a6cec9f26"

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/publish/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on add_publisher, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != id {
		t.Fatalf("expected echoed id %q, got %q", id, body)
	}

	resp = doRequest(t, http.MethodHead, srv.URL+"/info/publish/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on touch_publisher, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/info/publish/"+id, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on remove_publisher, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodHead, srv.URL+"/info/publish/"+id, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on touch of removed publisher, got %d", resp.StatusCode)
	}
}

func TestTouchUnknownPublisherBodyContainsExpectedSubstring(t *testing.T) {
	srv, _ := newTestServer(t)
	const id = "355f2e4f-554b-47d7-aca8-122a6cec9f26"

	resp := doRequest(t, http.MethodHead, srv.URL+"/info/publish/"+id, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "Touching unknown publisher ") {
		t.Fatalf("expected body to contain %q, got %q", "Touching unknown publisher ", body)
	}
}

// TestScenarioS5PublishThenSubscribeFanOut mirrors spec.md scenario S5.
func TestScenarioS5PublishThenSubscribeFanOut(t *testing.T) {
	srv, rec := newTestServer(t)
	const publisher = "8dbdd47c-cb61-44b2-8919-bd44a87fcd48"

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/publish/"+publisher, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add_publisher: expected 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPut, srv.URL+"/info/publish/mytopic/"+publisher+"/mysubject", nil, "test body")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, srv.URL+"/info/subscribe/mytopic", map[string]string{"Location": "http://subscriber1:9000"}, "")
	subID := readBody(t, resp)

	resp = doRequest(t, http.MethodHead, srv.URL+"/info/subscribe/"+subID, nil, "")
	resp.Body.Close()

	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one publish_message call, got %d: %+v", len(calls), calls)
	}
	c := calls[0]
	if c.Kind != "publish" || c.Callback != "http://subscriber1:9000" || c.Message.Topic != "mytopic" ||
		c.Message.Subject != "mysubject" || string(c.Message.Body) != "test body" {
		t.Fatalf("unexpected call recorded: %+v", c)
	}

	rec.Reset()
	resp = doRequest(t, http.MethodDelete, srv.URL+"/info/publish/"+publisher, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove_publisher: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	calls = rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one remove_message call, got %d: %+v", len(calls), calls)
	}
	c = calls[0]
	if c.Kind != "remove" || c.Callback != "http://subscriber1:9000" || c.Message.Topic != "mytopic" ||
		c.Message.Subject != "mysubject" || len(c.Message.Body) != 0 {
		t.Fatalf("unexpected retraction call recorded: %+v", c)
	}
}

// TestScenarioS6AutoUnsubscribeOnDeliveryFailure mirrors spec.md scenario S6.
func TestScenarioS6AutoUnsubscribeOnDeliveryFailure(t *testing.T) {
	srv, rec := newTestServer(t)
	const publisher = "8dbdd47c-cb61-44b2-8919-bd44a87fcd48"

	doRequest(t, http.MethodGet, srv.URL+"/info/publish/"+publisher, nil, "").Body.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/info/subscribe/mytopic", map[string]string{"Location": "http://subscriber1:9000"}, "")
	subID := readBody(t, resp)
	doRequest(t, http.MethodHead, srv.URL+"/info/subscribe/"+subID, nil, "").Body.Close()

	rec.FailNextPublish(1)
	doRequest(t, http.MethodPut, srv.URL+"/info/publish/mytopic/"+publisher+"/s1", nil, "a").Body.Close()

	rec.Reset()
	doRequest(t, http.MethodPut, srv.URL+"/info/publish/mytopic/"+publisher+"/s2", nil, "b").Body.Close()

	if calls := rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no delivery on republish after auto-unsubscribe, got %d calls", len(calls))
	}
}

func TestMalformedIDReturns400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/info/subscribe/not-a-uuid", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != healthBody {
		t.Fatalf("unexpected health body: %q", body)
	}
}
