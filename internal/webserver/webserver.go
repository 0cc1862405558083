// Package webserver is the HTTP client for the control server REST API.
package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/serverpulse/agent/internal/observability/log"
)

// StatusError reports a non-2xx response from the control server. The
// body is truncated but kept for diagnostics.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %d %s", e.Status, http.StatusText(e.Status))
}

// API talks to the control server over HTTP.
type API struct {
	baseURL string
	http    *http.Client
	logger  log.Log
}

// New returns an API rooted at baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration, logger log.Log) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(log.String("component", "webserver")),
	}
}

// RegisterRequest announces the agent to the control server.
type RegisterRequest struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
}

// RegisterResponse carries the identity the server assigned.
type RegisterResponse struct {
	AgentID string `json:"agent_id"`
}

// Register announces the agent and returns its assigned identity.
func (a *API) Register(ctx context.Context, token string, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := a.postJSON(ctx, token, "/api/v1/agents/register", req, &resp); err != nil {
		return nil, err
	}
	if resp.AgentID == "" {
		return nil, errors.New("register response missing agent_id")
	}
	return &resp, nil
}

// Report is one metrics submission.
type Report struct {
	ReportID  string    `json:"report_id"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	CPUUsage  float64   `json:"cpu_usage"`
	MemUsage  float64   `json:"mem_usage"`
	DiskUsage float64   `json:"disk_usage"`
	UptimeSec uint64    `json:"uptime_sec"`
}

// SubmitReport sends a metrics report.
func (a *API) SubmitReport(ctx context.Context, token string, report Report) error {
	return a.postJSON(ctx, token, "/api/v1/reports", report, nil)
}

// postJSON sends body as JSON and decodes the response into out when
// out is non-nil.
func (a *API) postJSON(ctx context.Context, token, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	a.logger.Debug("sending request", log.String("path", path))

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Debug("request failed",
			log.String("path", path),
			log.Int("status", resp.StatusCode))
		return &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}
