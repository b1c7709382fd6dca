package adapter

import (
	"fmt"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

const pdfParser = "pdf_structural"

// PDFStruct normalises page-partitioned structural PDF payloads: a pages
// list where each page carries its own spans, tables, and fields. Spans
// without a confidence inherit the page confidence.
type PDFStruct struct{}

func NewPDFStruct() *PDFStruct {
	return &PDFStruct{}
}

func (a *PDFStruct) Name() string {
	return pdfParser
}

func (a *PDFStruct) Transform(p payload.Body, meta Meta) (*canonical.Document, error) {
	doc := newDocument(meta, metaMimeType(meta))

	pages := payload.MapList(p, "pages")
	for i, page := range pages {
		pageNumber := payload.IntOr(page, i+1, "page_number", "page")
		pageConfidence := confidenceOr(page, 1.0)

		for j, row := range pageSpanRows(page) {
			content, _ := payload.String(row, "content", "text")
			spanID, ok := payload.String(row, "span_id", "id")
			if !ok || spanID == "" {
				spanID = fmt.Sprintf("p%d-span-%d", pageNumber, j)
			}
			confidence := confidenceOr(row, pageConfidence)
			region := regionFromRow(row)
			if region == nil {
				region = &canonical.BoundingRegion{Page: pageNumber}
			}
			doc.TextSpans = append(doc.TextSpans, canonical.TextSpan{
				Content:           content,
				Confidence:        confidence,
				Region:            region,
				SpanID:            spanID,
				Provenance:        &canonical.Provenance{Parser: pdfParser, Method: "block"},
				ConfidenceSignals: signal(pdfParser, "block", confidence),
			})
		}

		for j, table := range payload.MapList(page, "tables") {
			t := pdfTable(table, pageNumber, j, pageConfidence)
			doc.Tables = append(doc.Tables, t)
		}

		for _, field := range payload.MapList(page, "fields") {
			name, _ := payload.String(field, "name", "key")
			confidence := confidenceOr(field, pageConfidence)
			f := canonical.Field{
				Name:              name,
				Confidence:        confidence,
				Region:            &canonical.BoundingRegion{Page: pageNumber},
				Provenance:        &canonical.Provenance{Parser: pdfParser, Method: "field"},
				ConfidenceSignals: signal(pdfParser, "field", confidence),
			}
			if value, ok := payload.String(field, "value", "content"); ok {
				f.Value = &value
			}
			doc.Fields = append(doc.Fields, f)
		}

		doc.PageSegments = append(doc.PageSegments, canonical.PageSegment{
			PageNumber: pageNumber,
			Parser:     pdfParser,
			Method:     "structural",
			Confidence: pageConfidence,
		})
	}

	if len(pages) == 0 {
		doc.PageSegments = inferSegments(doc, pdfParser, "structural")
	}
	return doc, nil
}

// pageSpanRows finds the span list under whichever key the producer used,
// or wraps a bare text value as a single row.
func pageSpanRows(page payload.Body) []payload.Body {
	for _, key := range []string{"text_spans", "spans", "text_blocks", "blocks", "lines"} {
		if rows := payload.MapList(page, key); len(rows) > 0 {
			return rows
		}
	}
	if text, ok := payload.String(page, "text"); ok && text != "" {
		return []payload.Body{{"content": text}}
	}
	return nil
}

func pdfTable(row payload.Body, pageNumber, index int, pageConfidence float64) canonical.Table {
	tableID, ok := payload.String(row, "table_id", "id")
	if !ok || tableID == "" {
		tableID = fmt.Sprintf("p%d-table-%d", pageNumber, index)
	}
	confidence := confidenceOr(row, pageConfidence)

	table := canonical.Table{
		TableID:    tableID,
		Confidence: confidence,
		Provenance: &canonical.Provenance{Parser: pdfParser, Method: "table"},
	}
	for _, cell := range payload.MapList(row, "cells") {
		content, _ := payload.String(cell, "content", "text")
		cellConfidence := confidenceOr(cell, confidence)
		table.Cells = append(table.Cells, canonical.TableCell{
			RowIndex:          payload.IntOr(cell, 0, "row_index"),
			ColumnIndex:       payload.IntOr(cell, 0, "column_index"),
			Content:           content,
			Confidence:        cellConfidence,
			Region:            canonical.BoundingRegion{Page: pageNumber},
			RowSpan:           max(1, payload.IntOr(cell, 1, "row_span")),
			ColumnSpan:        max(1, payload.IntOr(cell, 1, "column_span")),
			Provenance:        &canonical.Provenance{Parser: pdfParser, Method: "table_cell"},
			ConfidenceSignals: signal(pdfParser, "table_cell", cellConfidence),
		})
	}
	return table
}
