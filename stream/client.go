// Package stream issues streaming requests against the backend and folds the
// event stream into a single outcome.
//
// A call POSTs a JSON body, requires a 2xx response, then delivers every
// decoded event to a caller handler in arrival order until a terminal event.
// Exactly one of (*Outcome, nil) or (nil, error) is returned; the error is one
// of *TransportError, *StreamError, *IncompleteStreamError or *CanceledError.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
)

// DefaultResponseTimeout bounds the wait for response headers. The body
// itself is unbounded; cancel the context to stop a long stream.
const DefaultResponseTimeout = 30 * time.Second

// maxErrorBody bounds how much of a non-2xx body is read for its message.
const maxErrorBody = 64 * 1024

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8080".
	BaseURL string
	// Headers are added to every request.
	Headers map[string]string
	// ResponseTimeout bounds the wait for response headers (default 30s).
	ResponseTimeout time.Duration
	// HTTPClient overrides the transport. Its Timeout should be zero, since
	// an overall timeout would cut long streams.
	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *metrics.Collector
	// Recorder, if set, observes every delivered event.
	Recorder Recorder
}

// Client issues streaming requests.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *log.Logger
	collector  *metrics.Collector
	recorder   Recorder
}

// NewClient creates a streaming client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.ResponseTimeout
		if timeout <= 0 {
			timeout = DefaultResponseTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		httpClient = &http.Client{Transport: transport}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    cfg.Headers,
		httpClient: httpClient,
		logger:     cfg.Logger,
		collector:  cfg.Metrics,
		recorder:   cfg.Recorder,
	}
}

// WithRecorder returns a shallow copy of c that records events to r.
func (c *Client) WithRecorder(r Recorder) *Client {
	cp := *c
	cp.recorder = r
	return &cp
}

// Do POSTs body as JSON to path and streams the response into h.
func (c *Client) Do(ctx context.Context, path string, body any, h Handler) (*Outcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.collector.IncStreamStarted()
	c.logger.Debug("stream request", map[string]any{
		"path": path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.collector.IncStreamCanceled()
			return nil, &CanceledError{Err: ctxErr}
		}
		c.collector.IncTransportFailure()
		c.logger.Warn("stream request failed", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return nil, &TransportError{Err: err}
	}
	// Close without draining: bytes after the terminal event are not read.
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.collector.IncTransportFailure()
		msg := ResponseMessage(resp)
		c.logger.Warn("stream request rejected", map[string]any{
			"path":   path,
			"status": resp.StatusCode,
			"detail": msg,
		})
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: msg}
	}

	d := NewDispatcher(resp.Body, h, c.recorder, c.logger, c.collector)
	outcome, err := d.Run(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("stream completed", map[string]any{
		"path":        path,
		"events":      outcome.Events,
		"skipped":     outcome.Skipped,
		"duration_ms": outcome.Duration.Milliseconds(),
	})
	return outcome, nil
}

// ResponseMessage extracts a human-readable message from an error response.
// It understands {"detail": "..."}, {"error": "..."} and {"message": "..."}
// bodies and falls back to the trimmed body text, then the status text.
func ResponseMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var detail string
		if len(envelope.Detail) > 0 && json.Unmarshal(envelope.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		// Validation errors carry a structured detail.
		if len(envelope.Detail) > 0 && string(envelope.Detail) != "null" {
			return string(envelope.Detail)
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
