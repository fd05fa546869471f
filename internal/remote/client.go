// Package remote is the workstation's client for the patient records API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/logger"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

const (
	patientsPath = "/api/patients"
	healthPath   = "/health"

	maxErrorBody = 64 << 10
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClient builds a client. httpClient and breaker may be nil.
func NewClient(config Config, httpClient *http.Client, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("patient API base URL cannot be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid patient API base URL: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     log,
		metrics:    m,
	}, nil
}

// BreakerFailure is the circuit breaker policy for this client: only
// unreachable servers and 5xx answers count. Requests the caller abandoned
// say nothing about the server.
func BreakerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		return true
	}
	switch appErr.Code {
	case apperrors.ErrNetwork:
		return true
	case apperrors.ErrRemote:
		return appErr.Status >= 500
	default:
		return false
	}
}

func (c *Client) List(ctx context.Context) ([]*model.PatientRecord, error) {
	var docs []patientDocument
	if err := c.do(ctx, "list", http.MethodGet, patientsPath, nil, &docs); err != nil {
		return nil, err
	}

	records := make([]*model.PatientRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, fromDocument(d))
	}
	return records, nil
}

// Create posts p without an id and returns the record the API stored.
func (c *Client) Create(ctx context.Context, p *model.PatientRecord) (*model.PatientRecord, error) {
	doc := toDocument(p)
	doc.ID = ""

	var out patientDocument
	if err := c.do(ctx, "create", http.MethodPost, patientsPath, doc, &out); err != nil {
		return nil, err
	}
	return fromDocument(out), nil
}

func (c *Client) Update(ctx context.Context, p *model.PatientRecord) (*model.PatientRecord, error) {
	var out patientDocument
	if err := c.do(ctx, "update", http.MethodPut, patientPath(p.ID), toDocument(p), &out); err != nil {
		return nil, err
	}
	return fromDocument(out), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, patientPath(id), nil, nil)
}

// Ping checks that the API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, healthPath, nil, nil)
}

func patientPath(id string) string {
	return patientsPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	call := func() error {
		return c.roundTrip(ctx, op, method, path, in, out)
	}

	if c.breaker == nil {
		return call()
	}

	err := c.breaker.Execute(call)
	if circuitbreaker.IsOpen(err) {
		return apperrors.Network(fmt.Errorf("patient API unavailable: %w", err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RemoteRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		c.logger.Warn("patient API returned an error", "operation", op, "status", resp.StatusCode)
		return apperrors.Remote(resp.StatusCode, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Remote(resp.StatusCode, fmt.Sprintf("malformed %s response", op))
	}
	return nil
}

func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	var er struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &er); err != nil {
		return ""
	}
	return er.Detail
}
