package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	defaultDelay    = 100 * time.Millisecond
	maxBodyBytes    = 16 << 20
)

var errRetryableStatus = errors.New("retryable status")

// Client issues GET requests with a flat retry policy.
type Client struct {
	http      *http.Client
	attempts  int
	delay     time.Duration
	userAgent string
	logger    *slog.Logger
}

var _ ports.Fetcher = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the total number of attempts and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger attaches a logger for retry notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a fetcher with a 30s timeout and 3 attempts spaced 100ms apart.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Get performs the request. Transport errors, 5xx and 429 are retried; any
// other status is returned immediately. A status that is still retryable
// after the last attempt is returned as a response, not an error.
func (c *Client) Get(ctx context.Context, rawURL string) (ports.FetchResponse, error) {
	var last ports.FetchResponse

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("new request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: do request: %w", domain.ErrNetwork, err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		closeErr := resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read body: %w", domain.ErrNetwork, err)
		}
		if closeErr != nil {
			return fmt.Errorf("%w: close response body: %w", domain.ErrNetwork, closeErr)
		}

		last = ports.FetchResponse{StatusCode: resp.StatusCode, Body: body}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", errRetryableStatus, resp.Status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), uint64(c.attempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		switch {
		case errors.Is(err, errRetryableStatus):
			return last, nil
		case errors.Is(err, domain.ErrNetwork):
			return ports.FetchResponse{}, err
		default:
			return ports.FetchResponse{}, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
		}
	}
	return last, nil
}
