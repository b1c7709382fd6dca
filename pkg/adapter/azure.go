package adapter

import (
	"fmt"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

const azureParser = "azure_document_intelligence"

// Azure normalises Azure Document Intelligence analyse results. Paragraphs
// are preferred over per-page lines; both carry full provenance and the raw
// vendor confidence as a signal.
type Azure struct{}

func NewAzure() *Azure {
	return &Azure{}
}

func (a *Azure) Name() string {
	return azureParser
}

func (a *Azure) Transform(p payload.Body, meta Meta) (*canonical.Document, error) {
	doc := newDocument(meta, metaMimeType(meta))

	if paragraphs := payload.MapList(p, "paragraphs"); len(paragraphs) > 0 {
		for _, para := range paragraphs {
			doc.TextSpans = append(doc.TextSpans, azureSpan(para, "paragraph"))
		}
	} else {
		for _, page := range payload.MapList(p, "pages") {
			for _, line := range payload.MapList(page, "lines") {
				span := azureSpan(line, "line")
				if span.Region == nil {
					if pageNum, ok := payload.Int(page, "page_number", "page"); ok {
						span.Region = &canonical.BoundingRegion{Page: pageNum}
					}
				}
				doc.TextSpans = append(doc.TextSpans, span)
			}
		}
	}

	for i, table := range payload.MapList(p, "tables") {
		doc.Tables = append(doc.Tables, azureTable(table, i))
	}

	for _, vendorDoc := range payload.MapList(p, "documents") {
		fields, ok := payload.Map(vendorDoc, "fields")
		if !ok {
			continue
		}
		for name, raw := range fields {
			field, ok := payload.AsMap(raw)
			if !ok {
				continue
			}
			doc.Fields = append(doc.Fields, azureField(name, field))
		}
	}

	doc.PageSegments = azureSegments(doc, p)
	return doc, nil
}

func azureSpan(row payload.Body, method string) canonical.TextSpan {
	content, _ := payload.String(row, "content", "text")
	confidence := confidenceOr(row, 1.0)
	return canonical.TextSpan{
		Content:           content,
		Confidence:        confidence,
		Region:            regionFromRow(row),
		Provenance:        &canonical.Provenance{Parser: azureParser, Method: method},
		ConfidenceSignals: signal(azureParser, method, confidence),
	}
}

func azureTable(row payload.Body, index int) canonical.Table {
	tableID, ok := payload.String(row, "table_id", "id")
	if !ok || tableID == "" {
		tableID = fmt.Sprintf("table-%d", index)
	}
	confidence := confidenceOr(row, 1.0)

	table := canonical.Table{
		TableID:    tableID,
		Confidence: confidence,
		Provenance: &canonical.Provenance{Parser: azureParser, Method: "table"},
	}
	if caption, ok := payload.DigString(row, "caption", "content"); ok {
		table.Caption = caption
	} else if caption, ok := payload.String(row, "caption"); ok {
		table.Caption = caption
	}
	for _, cell := range payload.MapList(row, "cells") {
		content, _ := payload.String(cell, "content", "text")
		cellConfidence := confidenceOr(cell, confidence)
		region := regionFromRow(cell)
		if region == nil {
			region = &canonical.BoundingRegion{Page: 1}
		}
		table.Cells = append(table.Cells, canonical.TableCell{
			RowIndex:          payload.IntOr(cell, 0, "row_index"),
			ColumnIndex:       payload.IntOr(cell, 0, "column_index"),
			Content:           content,
			Confidence:        cellConfidence,
			Region:            *region,
			RowSpan:           max(1, payload.IntOr(cell, 1, "row_span")),
			ColumnSpan:        max(1, payload.IntOr(cell, 1, "column_span")),
			Provenance:        &canonical.Provenance{Parser: azureParser, Method: "table_cell"},
			ConfidenceSignals: signal(azureParser, "table_cell", cellConfidence),
		})
	}
	return table
}

func azureField(name string, row payload.Body) canonical.Field {
	confidence := confidenceOr(row, 1.0)
	field := canonical.Field{
		Name:              name,
		Confidence:        confidence,
		Region:            regionFromRow(row),
		Provenance:        &canonical.Provenance{Parser: azureParser, Method: "field"},
		ConfidenceSignals: signal(azureParser, "field", confidence),
	}
	if valueType, ok := payload.String(row, "type", "value_type"); ok {
		field.ValueType = valueType
	}
	if value, ok := payload.String(row, "content", "value", "value_string"); ok {
		field.Value = &value
	}
	return field
}

// azureSegments builds page segments from the explicit pages list, falling
// back to pages inferred from span regions.
func azureSegments(doc *canonical.Document, p payload.Body) []canonical.PageSegment {
	pages := payload.MapList(p, "pages")
	if len(pages) == 0 {
		return inferSegments(doc, azureParser, "layout")
	}
	segments := make([]canonical.PageSegment, 0, len(pages))
	for i, page := range pages {
		segments = append(segments, canonical.PageSegment{
			PageNumber: payload.IntOr(page, i+1, "page_number", "page"),
			Parser:     azureParser,
			Method:     "layout",
			Confidence: confidenceOr(page, 1.0),
		})
	}
	return segments
}
