// Package layoutmodel is the HTTP client for the external layout model
// service, which scores page densities for documents the local analysers
// cannot handle.
package layoutmodel

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

// DefaultTimeout bounds one model call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Request describes one document for the model.
type Request struct {
	ObjectKey string
	Bucket    string
	MimeType  string
	PageCount int
	Metadata  map[string]any
	ModelType string
	Document  []byte
}

// PageRow is one page's densities and counts as returned by the model.
type PageRow struct {
	Index            int
	TextDensity      float64
	ImageDensity     float64
	TableDensity     float64
	CharCount        int
	TableCount       int
	ImageCount       int
	CheckboxCount    int
	RadioButtonCount int
}

// Client calls the layout model endpoint.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

func New(endpoint, token string, timeout time.Duration, httpClient *http.Client) *Client {
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

// Profile posts the document to the model and returns the per-page rows.
// The call is bounded by the client timeout regardless of the parent
// context's deadline.
func (c *Client) Profile(ctx context.Context, req Request) ([]PageRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]any{
		"object_key": req.ObjectKey,
		"bucket":     req.Bucket,
		"mime_type":  req.MimeType,
		"page_count": req.PageCount,
		"metadata":   req.Metadata,
	}
	if req.ModelType != "" {
		body["model_type"] = req.ModelType
	}
	if len(req.Document) > 0 {
		body["document"] = base64.StdEncoding.EncodeToString(req.Document)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding layout model request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building layout model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling layout model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("layout model returned status %d: %s", resp.StatusCode, snippet)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading layout model response: %w", err)
	}
	return parseResponse(raw)
}

// parseResponse tolerates snake_case and camelCase field names.
func parseResponse(raw []byte) ([]PageRow, error) {
	decoded, err := payload.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding layout model response: %w", err)
	}
	rowMaps := payload.MapList(decoded, "pages")
	rows := make([]PageRow, 0, len(rowMaps))
	for i, row := range rowMaps {
		rows = append(rows, PageRow{
			Index:            payload.IntOr(row, i, "index", "page_index"),
			TextDensity:      payload.FloatOr(row, 0, "text_density"),
			ImageDensity:     payload.FloatOr(row, 0, "image_density"),
			TableDensity:     payload.FloatOr(row, 0, "table_density"),
			CharCount:        payload.IntOr(row, 0, "char_count"),
			TableCount:       payload.IntOr(row, 0, "table_count"),
			ImageCount:       payload.IntOr(row, 0, "image_count"),
			CheckboxCount:    payload.IntOr(row, 0, "checkbox_count"),
			RadioButtonCount: payload.IntOr(row, 0, "radio_button_count"),
		})
	}
	return rows, nil
}
