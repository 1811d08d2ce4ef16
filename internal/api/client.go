package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bobtabor/hve-data/internal/calendar"
)

// Client provides access to the market data REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	cal        *calendar.Calendar

	policy    RetryPolicy
	throttle  *throttle
	chunkDays int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. The calendar converts bar
// timestamps to exchange-local trading dates; there is no other process-wide
// state, so two clients with different keys or policies can coexist.
func NewClient(baseURL, apiKey string, cal *calendar.Calendar, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    slog.Default(),
		cal:       cal,
		policy:    DefaultRetryPolicy(),
		throttle:  newThrottle(50 * time.Millisecond),
		chunkDays: 365,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry budget and initial backoff, keeping the
// default retryable predicate.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.policy.MaxRetries = max
		c.policy.Backoff = backoff
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithMinInterval sets the minimum spacing between any two requests.
// Zero disables throttling.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.throttle = newThrottle(d)
	}
}

// WithChunkDays sets the window size for chunked history fetches.
func WithChunkDays(days int) ClientOption {
	return func(c *Client) {
		c.chunkDays = days
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
