package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
	"ForecastPoster/internal/retry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "ForecastPoster/1.0"
)

// Options configures the HTTP collaborator.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// Client issues GET requests for listings and images.
type Client struct {
	http   *resty.Client
	policy retry.Policy
	logger *slog.Logger
}

var _ ports.Fetcher = (*Client)(nil)

// New builds a client; zero options fall back to a 30s timeout and a single attempt.
func New(opts Options, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", ua),
		policy: opts.Retry,
		logger: logger,
	}
}

// Get fetches url, retrying transient failures according to the configured policy.
func (c *Client) Get(ctx context.Context, url string) (ports.Response, error) {
	var out ports.Response

	policy := c.policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		if c.logger != nil {
			c.logger.Warn("get failed, retrying", "url", url, "attempt", attempt, "wait", wait, "error", err)
		}
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).Get(url)
		if err != nil {
			return classifyTransportError(ctx, fmt.Errorf("get %s: %w", url, err))
		}
		if err := ClassifyStatus(resp.StatusCode(), resp.Status(), resp.String()); err != nil {
			return fmt.Errorf("get %s: %w", url, err)
		}
		out = ports.Response{
			Status: resp.StatusCode(),
			Body:   resp.Body(),
			Header: resp.Header(),
		}
		return nil
	})
	if err != nil {
		return ports.Response{}, err
	}
	return out, nil
}

// ClassifyStatus maps a status code onto the transient/permanent/rate-limit kinds.
func ClassifyStatus(code int, status, body string) error {
	if code >= 200 && code < 300 {
		return nil
	}

	err := fmt.Errorf("http %s: %s", statusText(code, status), snippet(body))
	switch {
	case code == http.StatusTooManyRequests:
		return domain.RateLimited(err)
	case code == http.StatusRequestTimeout, code == http.StatusTooEarly, code >= 500:
		return domain.Transient(err)
	default:
		return domain.Permanent(err)
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return domain.Transient(err)
}

func statusText(code int, status string) string {
	if status != "" {
		return status
	}
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 256 {
		return body[:256]
	}
	return body
}
