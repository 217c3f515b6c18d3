package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tracelens/rootgraph/internal/models"
	"github.com/tracelens/rootgraph/internal/utils"
)

// TelemetryClient fetches trace batches from the dashboard's telemetry
// backend. The backend validates trace shape at its boundary; everything
// returned here is treated as well-formed by the graph core.
type TelemetryClient struct {
	baseURL    string
	tracesPath string
	httpClient *http.Client
}

// NewTelemetryClient constructs a client targeting the configured backend.
func NewTelemetryClient(baseURL, tracesPath string, timeout time.Duration) *TelemetryClient {
	return &TelemetryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tracesPath: tracesPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchTraces queries the backend for traces of one service within a time
// window. Timestamps are epoch milliseconds on the wire.
func (c *TelemetryClient) FetchTraces(ctx context.Context, projectID, service string, start, end int64) ([]models.Trace, error) {
	if c == nil {
		return nil, fmt.Errorf("telemetry client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("telemetry base URL not configured")
	}

	payload := map[string]interface{}{
		"project_id": projectID,
		"service":    service,
		"start":      start,
		"end":        end,
	}

	var response struct {
		Traces []models.Trace `json:"traces"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.tracesPath), payload, &response); err != nil {
		return nil, utils.NewAppError("repo.FetchTraces", "telemetry traces request failed", err)
	}
	return response.Traces, nil
}

func (c *TelemetryClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *TelemetryClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telemetry backend returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
