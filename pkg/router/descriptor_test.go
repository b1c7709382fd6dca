package router

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/payload"
)

func TestSniffMimeTypeExplicitWins(t *testing.T) {
	t.Parallel()

	body := payload.Body{
		"documentMetadata": map[string]any{"contentType": "application/pdf"},
		"documentBytes":    "<html>not a pdf</html>",
	}
	assert.Equal(t, "application/pdf", SniffMimeType(body, "page.html"))
}

func TestSniffMimeTypeFromInlinePayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"pdf magic", "%PDF-1.7\nxref", "application/pdf"},
		{"ole magic", "\xD0\xCF\x11\xE0rest", "application/msword"},
		{"zip with word dir", "PK\x03\x04....word/document.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"zip with xl dir", "PK\x03\x04....xl/workbook.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"plain zip", "PK\x03\x04....something.bin\x00\x01", "application/zip"},
		{"html doctype", "<!DOCTYPE html><html></html>", "text/html"},
		{"xml prolog", "<?xml version=\"1.0\"?><root/>", "application/xml"},
		{"email headers", "From: a@example.com\nTo: b@example.com\n", "message/rfc822"},
		{"ascii heavy", "plain old text content that is clearly readable", "text/plain"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			body := payload.Body{
				"documentBytes": base64.StdEncoding.EncodeToString([]byte(tc.content)),
			}
			assert.Equal(t, tc.want, SniffMimeType(body, "unknown.bin"))
		})
	}
}

func TestSniffMimeTypeFromExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/pdf", SniffMimeType(payload.Body{}, "reports/q3.PDF"))
	assert.Equal(t, "message/rfc822", SniffMimeType(payload.Body{}, "inbox/mail.eml"))
	assert.Equal(t, "application/octet-stream", SniffMimeType(payload.Body{}, "blob.bin"))
}

func TestSniffMimeTypeDeterministic(t *testing.T) {
	t.Parallel()

	body := payload.Body{"documentBytes": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 content"))}
	first := SniffMimeType(body, "a.bin")
	for range 10 {
		assert.Equal(t, first, SniffMimeType(body, "a.bin"))
	}
}

func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	body, err := payload.Parse([]byte(`{
		"s3": {"bucket": {"name": "ingest-bucket"}, "object": {"key": "memo.pdf"}},
		"parser_override": " forced "
	}`))
	require.NoError(t, err)

	desc := NewDescriptor(body, "memo.pdf", "parser_override")
	assert.Equal(t, "ingest-bucket", desc.Bucket)
	assert.Equal(t, "memo.pdf", desc.ObjectKey)
	assert.Equal(t, "application/pdf", desc.MimeType)
	assert.Equal(t, "forced", desc.RequestOverride)
}

func TestBuildProfileAggregates(t *testing.T) {
	t.Parallel()

	profile := BuildProfile("doc.pdf", "b", "application/pdf", []PageMetrics{
		{PageIndex: 0, TextDensity: 0.8, ImageDensity: 0.1, CharCount: 1000},
		{PageIndex: 1, TextDensity: 0.4, ImageDensity: 0.9, ImageCount: 4, CharCount: 200},
		{PageIndex: 2, TextDensity: 1.5, TableDensity: 0.6, TableCount: 2, CheckboxCount: 1},
	})

	assert.Equal(t, 3, profile.PageCount)
	require.Len(t, profile.Pages, 3)
	assert.Equal(t, 1.0, profile.Pages[2].TextDensity, "density clamped to 1")
	assert.InDelta(t, (0.8+0.4+1.0)/3, profile.AverageTextDensity, 1e-9)
	assert.InDelta(t, 1.0/3, profile.ScannedPageRatio, 1e-9)
	assert.InDelta(t, 1.0/3, profile.TablePageRatio, 1e-9)
	assert.InDelta(t, 1.0/3, profile.FormPageRatio, 1e-9)
	assert.InDelta(t, 1.0/3, profile.CheckboxPageRatio, 1e-9)
	assert.Zero(t, profile.RadioPageRatio)
	assert.Equal(t, 2, profile.TotalTables)
	assert.Equal(t, 4, profile.TotalImages)
	assert.Equal(t, 1200, profile.TotalCharacters)
	assert.Equal(t, 2, profile.Pages[2].PageIndex)
}

func TestBuildProfileEmpty(t *testing.T) {
	t.Parallel()

	profile := BuildProfile("doc.pdf", "", "application/pdf", nil)
	assert.Equal(t, 0, profile.PageCount)
	assert.Empty(t, profile.Pages)
	assert.Zero(t, profile.AverageTextDensity)
}
