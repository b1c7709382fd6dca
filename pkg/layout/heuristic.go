// Package layout builds page-level document profiles. Variants range from
// pure metadata heuristics to an external layout model; every variant
// degrades toward the heuristic rather than failing a route.
package layout

import (
	"bytes"
	"context"

	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/router"
)

// Default densities assumed when metadata carries no layout information.
const (
	defaultTextDensity = 0.5
)

// Heuristic profiles a document from message metadata alone. It never
// fails and always produces at least one page.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Analyze(_ context.Context, desc *router.Descriptor, content []byte) (*router.Profile, error) {
	meta, _ := payload.Map(desc.Body, "documentMetadata")
	pageCount := resolvePageCount(meta, content)

	if layoutMeta, ok := payload.Map(meta, "layout"); ok {
		if rows := payload.MapList(layoutMeta, "pages"); len(rows) > 0 {
			pages := make([]router.PageMetrics, 0, len(rows))
			for i, row := range rows {
				pages = append(pages, MetricsFromRow(row, i))
			}
			return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, pages), nil
		}
		if text, ok := payload.Float(layoutMeta, "textDensity"); ok {
			image := payload.FloatOr(layoutMeta, 1-text, "imageDensity")
			table := payload.FloatOr(layoutMeta, 0, "tableDensity")
			return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, replicate(pageCount, router.PageMetrics{
				TextDensity:  text,
				ImageDensity: image,
				TableDensity: table,
			})), nil
		}
	}

	return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, replicate(pageCount, router.PageMetrics{
		TextDensity:  defaultTextDensity,
		ImageDensity: 1 - defaultTextDensity,
	})), nil
}

func replicate(n int, metrics router.PageMetrics) []router.PageMetrics {
	pages := make([]router.PageMetrics, n)
	for i := range pages {
		pages[i] = metrics
		pages[i].PageIndex = i
	}
	return pages
}

func resolvePageCount(meta payload.Body, content []byte) int {
	if n, ok := payload.Int(meta, "pageCount", "page_count"); ok && n > 0 {
		return n
	}
	if n := countPDFPages(content); n > 0 {
		return n
	}
	return 1
}

// countPDFPages counts /Type /Page objects in a raw PDF, best effort. The
// /Pages tree nodes also match the prefix, so those are subtracted.
func countPDFPages(content []byte) int {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return 0
	}
	// "/Type /Page" also prefix-matches the "/Type /Pages" tree nodes;
	// subtract those.
	pages := bytes.Count(content, []byte("/Type /Page")) + bytes.Count(content, []byte("/Type/Page"))
	treeNodes := bytes.Count(content, []byte("/Type /Pages")) + bytes.Count(content, []byte("/Type/Pages"))
	if n := pages - treeNodes; n > 0 {
		return n
	}
	return 1
}

// MetricsFromRow reads one page-metrics row, tolerating snake and camel
// case key forms. The index argument is the fallback page index.
func MetricsFromRow(row payload.Body, index int) router.PageMetrics {
	return router.PageMetrics{
		PageIndex:        payload.IntOr(row, index, "page_index", "index", "page"),
		TextDensity:      payload.FloatOr(row, 0, "text_density"),
		ImageDensity:     payload.FloatOr(row, 0, "image_density"),
		TableDensity:     payload.FloatOr(row, 0, "table_density"),
		CharCount:        payload.IntOr(row, 0, "char_count"),
		TableCount:       payload.IntOr(row, 0, "table_count"),
		ImageCount:       payload.IntOr(row, 0, "image_count"),
		CheckboxCount:    payload.IntOr(row, 0, "checkbox_count"),
		RadioButtonCount: payload.IntOr(row, 0, "radio_button_count"),
	}
}
