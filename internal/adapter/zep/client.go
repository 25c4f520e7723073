// Package zep provides an HTTP client for the Zep v2 graph-memory API and
// implements the memorygateway port.
package zep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/memorybridge/internal/domain"
	"github.com/Strob0t/memorybridge/internal/port/memorygateway"
	"github.com/Strob0t/memorybridge/internal/resilience"
)

const apiPrefix = "/api/v2"

var _ memorygateway.Gateway = (*Client)(nil)

// Client talks to the Zep v2 API.
type Client struct {
	http       *resty.Client
	breaker    *resilience.Breaker
	maxRetries uint64
	retryDelay time.Duration
}

// NewClient creates a Zep client. timeout bounds every single remote call.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(slogAdapter{})
	if apiKey != "" {
		rc.SetHeader("Authorization", "Api-Key "+apiKey)
	}
	return &Client{http: rc, retryDelay: 200 * time.Millisecond}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetRetry enables retries of idempotent calls (reads and searches) on
// transport errors, 429 and 5xx responses.
func (c *Client) SetRetry(maxRetries uint64, delay time.Duration) {
	c.maxRetries = maxRetries
	if delay > 0 {
		c.retryDelay = delay
	}
}

// Health checks if Zep is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", call{})
}

// IsHealthyError reports errors that are ordinary answers from a working
// gateway. Breakers built for this client should not count them.
func IsHealthyError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict)
}

// StatusError is a non-2xx answer that is not mapped to a domain error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zep API error %d: %s", e.Code, e.Body)
}

func (e *StatusError) transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// transportError wraps failures that never produced a response.
type transportError struct{ err error }

func (e *transportError) Error() string { return "zep request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.transient()
	}
	var te *transportError
	return errors.As(err, &te) && !errors.Is(err, context.Canceled)
}

// call describes one request. path may contain {id}, filled from pathID.
type call struct {
	pathID     string
	query      map[string]string
	body       any
	result     any
	idempotent bool
}

func (c *Client) do(ctx context.Context, method, path string, cl call) error {
	attempt := func(ctx context.Context) error {
		if c.breaker == nil {
			return c.send(ctx, method, path, cl)
		}
		return c.breaker.Execute(func() error { return c.send(ctx, method, path, cl) })
	}

	if !cl.idempotent || c.maxRetries == 0 {
		return attempt(ctx)
	}
	return resilience.Retry(ctx, c.maxRetries, c.retryDelay, retryable, attempt)
}

func (c *Client) send(ctx context.Context, method, path string, cl call) error {
	req := c.http.R().SetContext(ctx)
	if cl.pathID != "" {
		req.SetPathParam("id", cl.pathID)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		req.SetBody(cl.body)
	}
	if cl.result != nil {
		req.SetResult(cl.result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &transportError{err: err}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	case code == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrConflict)
	case code >= 400:
		return &StatusError{Code: code, Body: resp.String()}
	}
	return nil
}

// slogAdapter routes resty's internal warnings into the default logger.
type slogAdapter struct{}

func (slogAdapter) Errorf(format string, v ...any) {
	slog.Error("zep http client", "detail", fmt.Sprintf(format, v...))
}

func (slogAdapter) Warnf(format string, v ...any) {
	slog.Warn("zep http client", "detail", fmt.Sprintf(format, v...))
}

func (slogAdapter) Debugf(format string, v ...any) {
	slog.Debug("zep http client", "detail", fmt.Sprintf(format, v...))
}
