package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adred-codev/pubsub-broker/internal/headers"
	"github.com/adred-codev/pubsub-broker/internal/model"
	"golang.org/x/time/rate"
)

// HTTPClientConfig configures HTTPClient.
type HTTPClientConfig struct {
	// Timeout bounds a single callback round trip. The original Rust
	// implementation hard-codes a client timeout on its reqwest client;
	// spec.md is silent on the value, so we make it configurable
	// (internal/config BROKER_DELIVERY_TIMEOUT) rather than picking a number
	// that can't be tuned.
	Timeout time.Duration

	// MaxDispatchRate throttles outbound callback calls system-wide,
	// token-bucket style (0 disables throttling). Mirrors the teacher's
	// connection-rate-limiter use of golang.org/x/time/rate for outbound
	// protection, applied here to the delivery path instead of inbound
	// connections.
	MaxDispatchRate float64
	DispatchBurst   int
}

// HTTPClient is the production Client: it performs real HTTP requests
// against subscriber callback URLs.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient builds an HTTPClient from cfg.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	c := &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.MaxDispatchRate > 0 {
		burst := cfg.DispatchBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxDispatchRate), burst)
	}
	return c
}

// PublishMessage implements Client.
func (c *HTTPClient) PublishMessage(ctx context.Context, callback string, msg model.Message) error {
	url := fmt.Sprintf("%sreceive/%s/%s/%s", callback, msg.Topic, msg.Publisher, msg.Subject)
	return c.do(ctx, http.MethodPost, url, msg.Headers, msg.Body)
}

// RemoveMessage implements Client.
func (c *HTTPClient) RemoveMessage(ctx context.Context, callback string, msg model.Message) error {
	url := fmt.Sprintf("%sremove/%s/%s/%s", callback, msg.Topic, msg.Publisher, msg.Subject)
	return c.do(ctx, http.MethodDelete, url, msg.Headers, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, hdrs map[string]string, body []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	for k, v := range headers.Encode(hdrs) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{StatusCode: 0, Reason: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}
	return nil
}
