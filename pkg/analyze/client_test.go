package analyze

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/payload"
)

func TestClientAnalyze(t *testing.T) {
	t.Parallel()

	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text_spans": [{"content": "hello"}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok-1", time.Second, srv.Client())
	body, err := client.Analyze(t.Context(), Request{
		DocumentID:  "doc-1",
		Content:     []byte("%PDF-1.7"),
		ContentType: "application/pdf",
		Pages:       3,
		Metadata:    map[string]any{"source": "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", auth)
	assert.Equal(t, "doc-1", got["document_id"])
	assert.Equal(t, "application/pdf", got["content_type"])
	assert.Equal(t, float64(3), got["page_count"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")), got["document"])

	spans := payload.MapList(body, "text_spans")
	require.Len(t, spans, 1)
	content, _ := payload.String(spans[0], "content")
	assert.Equal(t, "hello", content)
}

func TestClientAnalyzeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", time.Second, srv.Client())
	_, err := client.Analyze(t.Context(), Request{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	fn := Func(func(_ context.Context, req Request) (payload.Body, error) {
		return payload.Body{"id": req.DocumentID}, nil
	})
	body, err := fn.Analyze(t.Context(), Request{DocumentID: "d"})
	require.NoError(t, err)
	assert.Equal(t, "d", body["id"])
}
