// Package httpclient provides the pooled HTTP client AION uses to talk to
// backend agent processes, with optional retry on rate-limit style answers
// and classification of transport failures.
package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

// RetryStrategy decides how a response status is retried.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
)

// RetryStrategyFunc maps a response status code to a strategy.
type RetryStrategyFunc func(int) RetryStrategy

// Client wraps http.Client with a bounded retry loop.
//
// The reverse proxy constructs one with PassthroughStrategy: a proxied
// request must reach the backend exactly once and relay whatever comes
// back, so only the pooling and failure classification are in play there.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	strategyFunc RetryStrategyFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithMaxRetries bounds the retry loop.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

// WithBaseDelay sets the base backoff delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithRetryStrategy sets the status-to-strategy mapping.
func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) {
		c.strategyFunc = strategyFunc
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		baseDelay:    time.Second,
		strategyFunc: DefaultRetryStrategy,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// DefaultRetryStrategy retries transient server-side statuses.
func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// PassthroughStrategy never retries.
func PassthroughStrategy(int) RetryStrategy {
	return NoRetry
}

// Do executes the request, retrying per the configured strategy. Transport
// errors are returned as-is for the caller to classify; responses are only
// retried when the request body can be replayed, otherwise the retryable
// response itself is returned with its body intact.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if c.strategyFunc(resp.StatusCode) == NoRetry || attempt == c.maxRetries {
			return resp, nil
		}
		if req.Body != nil && req.GetBody == nil {
			// Body already consumed and not replayable.
			return resp, nil
		}

		resp.Body.Close()
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}
		time.Sleep(c.backoff(attempt + 1))
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.baseDelay * time.Duration(1<<uint(attempt-1))
}

// CloseIdleConnections releases the connection pool.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
