// Package jobs submits processing runs to an external jobs API, used when
// ingestion dispatches batches to a worker fleet instead of processing
// inline.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Runner triggers one processing run and returns its run id.
type Runner interface {
	SubmitRun(ctx context.Context, jobID int64, params map[string]string) (int64, error)
}

// DefaultTimeout bounds one submit call.
const DefaultTimeout = 30 * time.Second

// Client submits runs over the jobs REST API.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *Client) SubmitRun(ctx context.Context, jobID int64, params map[string]string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"job_id":          jobID,
		"notebook_params": params,
	})
	if err != nil {
		return 0, fmt.Errorf("encoding run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/2.1/jobs/run-now", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submitting run for job %d: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("jobs API returned status %d: %s", resp.StatusCode, snippet)
	}

	var decoded struct {
		RunID int64 `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decoding run response: %w", err)
	}
	return decoded.RunID, nil
}
