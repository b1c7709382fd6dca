// Package canonical defines the vendor-neutral document schema that every
// parser adapter emits and the store persists. Values are immutable once
// built; persisted JSON never carries nulls for unset optional fields.
package canonical

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is stamped on every document.
const SchemaVersion = "1.1"

// MaxAttachmentDepth bounds the attachment tree. Nested documents beyond
// this depth fail validation.
const MaxAttachmentDepth = 8

// BoundingRegion locates an element on a page.
type BoundingRegion struct {
	Page        int       `json:"page"`
	Polygon     []float64 `json:"polygon,omitempty"`
	BoundingBox []float64 `json:"bounding_box,omitempty"`
}

// ConfidenceSignal is a single confidence contribution from a parser.
type ConfidenceSignal struct {
	Source     string         `json:"source"`
	Confidence float64        `json:"confidence"`
	Method     string         `json:"method,omitempty"`
	Model      string         `json:"model,omitempty"`
	Weight     float64        `json:"weight,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Provenance records how an element was extracted.
type Provenance struct {
	Parser   string         `json:"parser"`
	Method   string         `json:"method,omitempty"`
	Model    string         `json:"model,omitempty"`
	Source   string         `json:"source,omitempty"`
	PageSpan []int          `json:"page_span,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TextSpan is a normalised run of extracted text.
type TextSpan struct {
	Content           string             `json:"content"`
	Confidence        float64            `json:"confidence"`
	Region            *BoundingRegion    `json:"region,omitempty"`
	SpanID            string             `json:"span_id,omitempty"`
	Provenance        *Provenance        `json:"provenance,omitempty"`
	ConfidenceSignals []ConfidenceSignal `json:"confidence_signals,omitempty"`
}

// VisualDescription captures non-textual context such as figures and photos.
type VisualDescription struct {
	Description       string             `json:"description"`
	Confidence        float64            `json:"confidence"`
	Region            *BoundingRegion    `json:"region,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	Provenance        *Provenance        `json:"provenance,omitempty"`
	ConfidenceSignals []ConfidenceSignal `json:"confidence_signals,omitempty"`
}

// TableCell is a cell within a Table. Row and column spans are at least 1.
type TableCell struct {
	RowIndex          int                `json:"row_index"`
	ColumnIndex       int                `json:"column_index"`
	Content           string             `json:"content"`
	Confidence        float64            `json:"confidence"`
	Region            BoundingRegion     `json:"region"`
	RowSpan           int                `json:"row_span"`
	ColumnSpan        int                `json:"column_span"`
	Provenance        *Provenance        `json:"provenance,omitempty"`
	ConfidenceSignals []ConfidenceSignal `json:"confidence_signals,omitempty"`
}

// Table is a normalised table.
type Table struct {
	TableID    string      `json:"table_id"`
	Confidence float64     `json:"confidence"`
	Cells      []TableCell `json:"cells"`
	Caption    string      `json:"caption,omitempty"`
	Footnotes  []string    `json:"footnotes,omitempty"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Field is a structured key/value extraction. Value is nullable and always
// serialised, null included.
type Field struct {
	Name              string             `json:"name"`
	Value             *string            `json:"value"`
	Confidence        float64            `json:"confidence"`
	ValueType         string             `json:"value_type,omitempty"`
	Region            *BoundingRegion    `json:"region,omitempty"`
	Provenance        *Provenance        `json:"provenance,omitempty"`
	ConfidenceSignals []ConfidenceSignal `json:"confidence_signals,omitempty"`
}

// PageSegment records which parser handled a page.
type PageSegment struct {
	PageNumber int            `json:"page_number"`
	Parser     string         `json:"parser"`
	Method     string         `json:"method,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Attachment is a named child of a document, for example an email
// attachment. Document holds the child's own canonical form when it was
// processed.
type Attachment struct {
	AttachmentID string         `json:"attachment_id"`
	FileName     string         `json:"file_name"`
	MimeType     string         `json:"mime_type"`
	Checksum     string         `json:"checksum,omitempty"`
	SourceURI    string         `json:"source_uri,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Document     *Document      `json:"document,omitempty"`
}

// Summary is a generated document summary.
type Summary struct {
	Summary       string         `json:"summary"`
	Confidence    float64        `json:"confidence"`
	Method        string         `json:"method"`
	Title         string         `json:"title,omitempty"`
	Model         string         `json:"model,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Enrichment is a post-parse annotation produced by an enrichment provider.
type Enrichment struct {
	EnrichmentType string         `json:"enrichment_type"`
	Provider       string         `json:"provider"`
	Content        map[string]any `json:"content"`
	Confidence     float64        `json:"confidence,omitempty"`
	Model          string         `json:"model,omitempty"`
	DurationMS     int64          `json:"duration_ms,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Document is the top-level canonical payload, keyed for persistence by
// (DocumentID, Checksum).
type Document struct {
	DocumentID         string              `json:"document_id"`
	SourceURI          string              `json:"source_uri"`
	Checksum           string              `json:"checksum"`
	SchemaVersion      string              `json:"schema_version"`
	Metadata           map[string]any      `json:"metadata"`
	TextSpans          []TextSpan          `json:"text_spans"`
	Tables             []Table             `json:"tables"`
	Fields             []Field             `json:"fields"`
	Summaries          []Summary           `json:"summaries,omitempty"`
	VisualDescriptions []VisualDescription `json:"visual_descriptions,omitempty"`
	PageSegments       []PageSegment       `json:"page_segments,omitempty"`
	Attachments        []Attachment        `json:"attachments,omitempty"`
	Enrichments        []Enrichment        `json:"enrichments,omitempty"`
	DocumentType       string              `json:"document_type,omitempty"`
	MimeType           string              `json:"mime_type,omitempty"`
}

type documentJSON Document

// MarshalJSON stamps the schema version and guarantees the always-present
// collections serialise as arrays, never null.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.SchemaVersion == "" {
		d.SchemaVersion = SchemaVersion
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if d.TextSpans == nil {
		d.TextSpans = []TextSpan{}
	}
	if d.Tables == nil {
		d.Tables = []Table{}
	}
	if d.Fields == nil {
		d.Fields = []Field{}
	}
	return json.Marshal(documentJSON(d))
}

// Decode parses a persisted canonical document.
func Decode(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding canonical document: %w", err)
	}
	return &doc, nil
}

// Validate checks the structural invariants: non-empty identity, confidences
// in [0,1], table cell spans of at least 1, and a bounded attachment tree.
func (d *Document) Validate() error {
	if d.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if d.Checksum == "" {
		return fmt.Errorf("document %s: checksum is required", d.DocumentID)
	}
	return d.validate(0)
}

func (d *Document) validate(depth int) error {
	if depth > MaxAttachmentDepth {
		return fmt.Errorf("document %s: attachment tree exceeds depth %d", d.DocumentID, MaxAttachmentDepth)
	}
	for i, span := range d.TextSpans {
		if !inUnit(span.Confidence) {
			return fmt.Errorf("document %s: text_spans[%d] confidence %v out of range", d.DocumentID, i, span.Confidence)
		}
	}
	for i, table := range d.Tables {
		if !inUnit(table.Confidence) {
			return fmt.Errorf("document %s: tables[%d] confidence %v out of range", d.DocumentID, i, table.Confidence)
		}
		for j, cell := range table.Cells {
			if !inUnit(cell.Confidence) {
				return fmt.Errorf("document %s: tables[%d].cells[%d] confidence %v out of range", d.DocumentID, i, j, cell.Confidence)
			}
			if cell.RowSpan < 1 || cell.ColumnSpan < 1 {
				return fmt.Errorf("document %s: tables[%d].cells[%d] has span below 1", d.DocumentID, i, j)
			}
		}
	}
	for i, field := range d.Fields {
		if !inUnit(field.Confidence) {
			return fmt.Errorf("document %s: fields[%d] confidence %v out of range", d.DocumentID, i, field.Confidence)
		}
	}
	for i, visual := range d.VisualDescriptions {
		if !inUnit(visual.Confidence) {
			return fmt.Errorf("document %s: visual_descriptions[%d] confidence %v out of range", d.DocumentID, i, visual.Confidence)
		}
	}
	for i, attachment := range d.Attachments {
		if attachment.Document == nil {
			continue
		}
		if err := attachment.Document.validate(depth + 1); err != nil {
			return fmt.Errorf("document %s: attachments[%d]: %w", d.DocumentID, i, err)
		}
	}
	return nil
}

// Clamp01 clamps a confidence or density to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
