// Package client is a Go SDK for the ladder assessment API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
)

const meterName = "github.com/sameera/osem-ladders-sub001/pkg/client"

// Client is a Go SDK for the ladder assessment API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
	timer      backoff.Timer

	requests metric.Int64Counter
	retries  metric.Int64Counter
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithRetryTimer sets the timer used to wait between retries
func WithRetryTimer(timer backoff.Timer) Option {
	return func(c *Client) {
		c.timer = timer
	}
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter(meterName)
	c.requests = int64Counter(meter, "ladder.client.requests", "HTTP requests sent, by outcome")
	c.retries = int64Counter(meter, "ladder.client.retries", "Retries scheduled after a retryable failure")

	return c
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
		counter, _ = noop.Meter{}.Int64Counter(name)
	}
	return counter
}

// ReportPath returns the API path of a report id
func ReportPath(id string) string {
	return "/api/v1/reports/" + url.PathEscape(id)
}

// CreateReport creates a new report
func (c *Client) CreateReport(ctx context.Context, in models.CreateReportInput) (*models.Report, error) {
	var report models.Report
	if err := c.call(ctx, http.MethodPost, "/api/v1/reports", in, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetReport retrieves a report by id
func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := c.call(ctx, http.MethodGet, ReportPath(id), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// UpdateReport applies a partial update to a report
func (c *Client) UpdateReport(ctx context.Context, id string, in models.UpdateReportInput) (*models.Report, error) {
	var report models.Report
	if err := c.call(ctx, http.MethodPut, ReportPath(id), in, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SubmitReport marks a report as submitted, checking completion against the ladder
func (c *Client) SubmitReport(ctx context.Context, id, ladderID string) (*models.Report, error) {
	path := ReportPath(id) + "/submit"
	if ladderID != "" {
		path += "?ladder=" + url.QueryEscape(ladderID)
	}
	var report models.Report
	if err := c.call(ctx, http.MethodPost, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveResponses stores responses for the identified report, creating it on first save
func (c *Client) SaveResponses(ctx context.Context, ident reportid.Identity, assessorID string, responses models.Responses) (*models.Report, error) {
	id := ident.String()
	report, err := c.UpdateReport(ctx, id, models.UpdateReportInput{Responses: responses})
	if err == nil {
		return report, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	slog.Debug("report not found, creating", "id", id)
	return c.CreateReport(ctx, models.CreateReportInput{
		UserID:       ident.UserID,
		AssessmentID: ident.AssessmentID,
		Type:         ident.Type,
		AssessorID:   assessorID,
		Responses:    responses,
	})
}

// ListLadders retrieves the catalog listing
func (c *Client) ListLadders(ctx context.Context) ([]models.LadderSummary, error) {
	var result struct {
		Ladders []models.LadderSummary `json:"ladders"`
		Total   int                    `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/ladders", nil, &result); err != nil {
		return nil, err
	}
	return result.Ladders, nil
}

// GetLadder retrieves a parsed ladder by id
func (c *Client) GetLadder(ctx context.Context, id string) (*models.Ladder, error) {
	var ladder models.Ladder
	if err := c.call(ctx, http.MethodGet, "/api/v1/ladders/"+url.PathEscape(id), nil, &ladder); err != nil {
		return nil, err
	}
	return &ladder, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// envelope mirrors the server response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs a request and decodes the data field of the response into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	var result envelope
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request, retrying server and network failures
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte
	attempt := 0

	operation := func() error {
		attempt++
		b, err := c.doOnce(ctx, method, path, body)
		kind := Classify(err)
		c.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("outcome", outcomeOf(err, kind)),
		))
		if err != nil {
			if !kind.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		respBody = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", Classify(err).String())))
		slog.Warn("request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	bo := backoff.WithContext(c.retry.newBackOff(), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, bo, notify, c.timer); err != nil {
		return nil, err
	}
	return respBody, nil
}

func outcomeOf(err error, kind ErrorKind) string {
	if err == nil {
		return "ok"
	}
	return kind.String()
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var result envelope
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
