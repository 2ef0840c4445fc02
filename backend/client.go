// Package backend is the client for the recruiting backend's HTTP API.
//
// Plain endpoints (vacancies, question reordering) are JSON request/response.
// Interview generation, interview feedback and screening chat are streaming
// and go through stream.Client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/stream"
	"github.com/justapithecus/screener/types"
)

// DefaultTimeout is the default timeout of plain JSON calls.
const DefaultTimeout = 30 * time.Second

// Streaming endpoint paths.
const (
	PathGenerate  = "/interview/generate"
	PathFeedback  = "/interview/feedback"
	PathReorder   = "/interview/reorder"
	PathScreening = "/screening/chat"
	PathVacancies = "/vacancies"
)

// ErrInvalidRequest is returned before any call is made when a request
// cannot be valid.
var ErrInvalidRequest = errors.New("invalid request")

// StatusError is returned when a plain JSON call gets a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend: status %d", e.Code)
}

// Permanent reports whether retrying cannot help (4xx).
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsNotFound returns true if err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Headers map[string]string
	// Timeout bounds plain JSON calls and the wait for stream headers.
	Timeout time.Duration
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Client talks to the backend.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	stream     *stream.Client
	logger     *log.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: timeout},
		stream: stream.NewClient(stream.Config{
			BaseURL:         cfg.BaseURL,
			Headers:         cfg.Headers,
			ResponseTimeout: timeout,
			Logger:          cfg.Logger,
			Metrics:         cfg.Metrics,
		}),
		logger: cfg.Logger,
	}
}

// BaseURL returns the backend origin the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithRecorder returns a copy of c whose streaming calls record every event.
func (c *Client) WithRecorder(r stream.Recorder) *Client {
	cp := *c
	cp.stream = c.stream.WithRecorder(r)
	return &cp
}

// --- Vacancies ---

// ListVacancies returns vacancy summaries. The backend answers either with a
// bare array or with a {"items", "total"} envelope; both are accepted.
func (c *Client) ListVacancies(ctx context.Context, q types.VacancyQuery) (*types.VacancyPage, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Source != "" {
		params.Set("source", q.Source)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	path := PathVacancies
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list vacancies: %w", err)
	}

	page := &types.VacancyPage{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return nil, fmt.Errorf("list vacancies: decode response: %w", err)
		}
		page.Total = len(page.Items)
		return page, nil
	}
	if err := json.Unmarshal(trimmed, page); err != nil {
		return nil, fmt.Errorf("list vacancies: decode response: %w", err)
	}
	if page.Total == 0 {
		page.Total = len(page.Items)
	}
	return page, nil
}

// GetVacancy returns one vacancy.
func (c *Client) GetVacancy(ctx context.Context, id string) (*types.Vacancy, error) {
	var v types.Vacancy
	if err := c.doJSON(ctx, http.MethodGet, vacancyPath(id), nil, &v); err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", id, err)
	}
	return &v, nil
}

// UpdateVacancy applies a partial update and returns the updated vacancy.
func (c *Client) UpdateVacancy(ctx context.Context, id string, patch types.VacancyPatch) (*types.Vacancy, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("update vacancy %s: %w: empty patch", id, ErrInvalidRequest)
	}
	var v types.Vacancy
	if err := c.doJSON(ctx, http.MethodPatch, vacancyPath(id), patch, &v); err != nil {
		return nil, fmt.Errorf("update vacancy %s: %w", id, err)
	}
	return &v, nil
}

// DeleteVacancy deletes a vacancy.
func (c *Client) DeleteVacancy(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, vacancyPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete vacancy %s: %w", id, err)
	}
	return nil
}

// --- Interview ---

// ReorderQuestions persists a new question order for a session's interview.
// Returns the reordered interview when the backend includes it.
func (c *Client) ReorderQuestions(ctx context.Context, req types.ReorderRequest) (*types.Interview, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("reorder questions: %w: session id is required", ErrInvalidRequest)
	}
	var resp types.InterviewCompletePayload
	if err := c.doJSON(ctx, http.MethodPost, PathReorder, req, &resp); err != nil {
		return nil, fmt.Errorf("reorder questions: %w", err)
	}
	return resp.Interview, nil
}

// GenerateInterview streams interview generation for a vacancy.
func (c *Client) GenerateInterview(ctx context.Context, req types.GenerateRequest, h stream.Handler) (*types.InterviewResult, error) {
	return c.interviewStream(ctx, PathGenerate, req, h)
}

// SubmitFeedback streams a revision of the session's interview.
func (c *Client) SubmitFeedback(ctx context.Context, req types.FeedbackRequest, h stream.Handler) (*types.InterviewResult, error) {
	return c.interviewStream(ctx, PathFeedback, req, h)
}

func (c *Client) interviewStream(ctx context.Context, path string, body any, h stream.Handler) (*types.InterviewResult, error) {
	outcome, err := c.stream.Do(ctx, path, body, h)
	if err != nil {
		return nil, err
	}
	var payload types.InterviewCompletePayload
	if err := outcome.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", path, err)
	}
	return &types.InterviewResult{
		Interview: payload.Interview,
		SessionID: payload.SessionID,
		Message:   payload.Message,
	}, nil
}

// --- Screening ---

// ScreeningChat streams a screening conversation. Lines arrive through h;
// the returned payload is the terminal complete event.
func (c *Client) ScreeningChat(ctx context.Context, req types.ScreeningChatRequest, h stream.Handler) (*types.SimulationCompletePayload, error) {
	outcome, err := c.stream.Do(ctx, PathScreening, req, h)
	if err != nil {
		return nil, err
	}
	var payload types.SimulationCompletePayload
	if err := outcome.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode screening result: %w", err)
	}
	return &payload, nil
}

// --- plumbing ---

func vacancyPath(id string) string {
	return PathVacancies + "/" + url.PathEscape(id)
}

// doJSON issues a JSON request. out may be nil to discard the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := stream.ResponseMessage(resp)
		c.logger.Debug("backend request rejected", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
