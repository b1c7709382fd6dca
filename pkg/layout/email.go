package layout

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/docflowhq/docflow/pkg/mimetree"
	"github.com/docflowhq/docflow/pkg/router"
)

// Characters per "full" page, used to scale body size onto a text density.
const (
	plainTextPageChars = 3000
	htmlPageChars      = 4000
)

// Email profiles RFC 822 messages: one page-metric per text part, with HTML
// parts contributing table/image/widget counts from the markup.
type Email struct{}

func NewEmail() *Email {
	return &Email{}
}

func (a *Email) Analyze(_ context.Context, desc *router.Descriptor, content []byte) (*router.Profile, error) {
	if len(content) == 0 {
		return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, []router.PageMetrics{plaintextMetrics(0, 0)}), nil
	}

	msg, err := mimetree.Parse(content)
	if err != nil {
		slog.Debug("Message did not parse as MIME, profiling as plain text", "object_key", desc.ObjectKey, "error", err)
		return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, []router.PageMetrics{plaintextMetrics(0, len(content))}), nil
	}

	var pages []router.PageMetrics
	for _, part := range msg.Bodies("text/plain", "text/html") {
		switch part.MediaType {
		case "text/html":
			pages = append(pages, htmlMetrics(len(pages), part.Content))
		default:
			pages = append(pages, plaintextMetrics(len(pages), len(part.Content)))
		}
	}
	if len(pages) == 0 {
		pages = []router.PageMetrics{plaintextMetrics(0, len(content))}
	}
	return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, pages), nil
}

func plaintextMetrics(index, chars int) router.PageMetrics {
	return router.PageMetrics{
		PageIndex:    index,
		TextDensity:  capDensity(float64(chars) / plainTextPageChars),
		ImageDensity: 0.05,
		CharCount:    chars,
	}
}

// htmlMetrics tokenises an HTML body and counts the layout-relevant
// elements. Malformed markup is fine: the tokenizer yields whatever it can.
func htmlMetrics(index int, content []byte) router.PageMetrics {
	var tables, images, checkboxes, radios, chars int

	tokenizer := html.NewTokenizer(bytes.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return router.PageMetrics{
				PageIndex:        index,
				TextDensity:      capDensity(float64(chars) / htmlPageChars),
				ImageDensity:     capDensity(float64(images) * 0.1),
				TableDensity:     capDensity(float64(tables) * 0.25),
				CharCount:        chars,
				TableCount:       tables,
				ImageCount:       images,
				CheckboxCount:    checkboxes,
				RadioButtonCount: radios,
			}
		case html.TextToken:
			chars += len(bytes.TrimSpace(tokenizer.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			switch string(name) {
			case "table":
				tables++
			case "img":
				images++
			case "input":
				switch inputType(tokenizer, hasAttr) {
				case "checkbox":
					checkboxes++
				case "radio":
					radios++
				}
			}
		}
	}
}

func inputType(tokenizer *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		key, val, more := tokenizer.TagAttr()
		if string(key) == "type" {
			return strings.ToLower(string(val))
		}
		hasAttr = more
	}
	return ""
}

func capDensity(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
