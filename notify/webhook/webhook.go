// Package webhook posts screening events as JSON to an HTTP endpoint.
//
// Every delivery carries the event type and a delivery ID in headers. The
// delivery ID is stable across retries of the same event so receivers can
// drop duplicates.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/notify"
)

// Delivery headers.
const (
	EventHeader    = "X-Screener-Event"
	DeliveryHeader = "X-Screener-Delivery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retries after the first attempt.
const DefaultRetries = 3

// maxRetryAfter caps how long a Retry-After response can stall a publish.
const maxRetryAfter = 30 * time.Second

// Config configures the webhook notifier.
type Config struct {
	// URL receives the POSTs (required).
	URL string
	// Headers are added to every request, e.g. Authorization.
	Headers map[string]string
	// Timeout bounds each request (default 10s).
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
}

// Notifier publishes events via HTTP POST.
type Notifier struct {
	config     Config
	client     *http.Client
	backoff    func(retry int) time.Duration
	deliveryID func() string
}

// New validates cfg and builds a notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook notifier requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Notifier{
		config:     cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		backoff:    defaultBackoff,
		deliveryID: uuid.NewString,
	}, nil
}

// defaultBackoff doubles from 500ms.
func defaultBackoff(retry int) time.Duration {
	return time.Duration(1<<uint(retry-1)) * 500 * time.Millisecond
}

// Publish posts the event. Network errors, 5xx, 408 and 429 are retried
// with backoff; other 4xx fail immediately. A Retry-After header stretches
// the wait before the next attempt.
func (n *Notifier) Publish(ctx context.Context, event *notify.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	delivery := n.deliveryID()
	attempts := 1 + n.config.Retries

	var lastErr error
	for i := range attempts {
		if i > 0 {
			wait := n.backoff(i)
			var se *StatusError
			if errors.As(lastErr, &se) && se.RetryAfter > wait {
				wait = min(se.RetryAfter, maxRetryAfter)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: canceled during backoff: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		lastErr = n.post(ctx, event.EventType, delivery, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("webhook: %w", lastErr)
		}
		var se *StatusError
		if errors.As(lastErr, &se) && se.Permanent() {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
	// RetryAfter is the server's Retry-After in seconds form, if sent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Permanent reports a 4xx other than 408 and 429.
func (e *StatusError) Permanent() bool {
	if e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests {
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

func (n *Notifier) post(ctx context.Context, eventType, delivery string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(DeliveryHeader, delivery)
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	return nil
}

// retryAfter parses the delay-seconds form. HTTP dates are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Close releases idle connections.
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

var _ notify.Notifier = (*Notifier)(nil)
