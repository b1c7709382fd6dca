package analyze

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docflowhq/docflow/pkg/payload"
)

// DefaultTimeout bounds one analyse call when no timeout is configured.
// Vendor analysis runs its own pollers, so this is generous.
const DefaultTimeout = 120 * time.Second

// Client calls an HTTP analyse endpoint and returns its JSON payload.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(endpoint, token string, timeout time.Duration, httpClient *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *Client) Analyze(ctx context.Context, req Request) (payload.Body, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]any{
		"document_id":  req.DocumentID,
		"content_type": req.ContentType,
		"page_count":   req.Pages,
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	if len(req.Content) > 0 {
		body["document"] = base64.StdEncoding.EncodeToString(req.Content)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding analyse request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building analyse request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling analyse endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyse endpoint returned status %d: %s", resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading analyse response: %w", err)
	}
	decoded, err := payload.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding analyse response: %w", err)
	}
	return decoded, nil
}
