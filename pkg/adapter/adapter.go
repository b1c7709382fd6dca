// Package adapter normalises vendor parser payloads into the canonical
// document schema. One adapter per vendor family, plus an ensemble adapter
// that fans out to sub-adapters and merges their output.
package adapter

import (
	"fmt"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

// Meta is the identity handed to every transform. Metadata is the
// workflow-level metadata map, not the vendor payload.
type Meta struct {
	DocumentID string
	SourceURI  string
	Checksum   string
	Metadata   map[string]any
}

// Adapter turns one vendor payload into a canonical document. Transforms
// are pure: they never mutate the payload or the meta.
type Adapter interface {
	// Name is the provider name recorded in parsers_used.
	Name() string
	Transform(p payload.Body, meta Meta) (*canonical.Document, error)
}

// Registry resolves adapter names. Read-only after construction.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry with the built-in adapters registered under
// their canonical names and common aliases.
func NewRegistry() *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	r.register(NewAzure(), "azure", "azure_document_intelligence")
	r.register(NewPDFStruct(), "pdf", "pdf_structural", "pymupdf")
	r.register(NewVision(), "vision", "llm", "image", "vision_llm")
	r.register(NewEmail(), "email")
	r.register(NewEnsemble(r), "ensemble", "multi", "multi_parser")
	return r
}

func (r *Registry) register(a Adapter, names ...string) {
	for _, name := range names {
		r.adapters[name] = a
	}
}

// Get resolves an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown parser adapter: %s", name)
	}
	return a, nil
}

// newDocument builds the document skeleton every adapter starts from.
func newDocument(meta Meta, mimeType string) *canonical.Document {
	metadata := map[string]any{}
	for k, v := range meta.Metadata {
		metadata[k] = v
	}
	return &canonical.Document{
		DocumentID:    meta.DocumentID,
		SourceURI:     meta.SourceURI,
		Checksum:      meta.Checksum,
		SchemaVersion: canonical.SchemaVersion,
		Metadata:      metadata,
		MimeType:      mimeType,
	}
}

// metaMimeType reads the effective MIME type from the workflow metadata.
func metaMimeType(meta Meta) string {
	mime, _ := payload.String(meta.Metadata, "mime_type", "content_type", "contentType")
	return mime
}

// confidenceOr reads a confidence from a payload row, defaulting when the
// vendor omitted one and clamping to [0,1].
func confidenceOr(row payload.Body, def float64, keys ...string) float64 {
	if len(keys) == 0 {
		keys = []string{"confidence"}
	}
	return canonical.Clamp01(payload.FloatOr(row, def, keys...))
}

// regionFromRow extracts a bounding region from the row itself or its first
// bounding_regions entry. Returns nil when no page information exists.
func regionFromRow(row payload.Body) *canonical.BoundingRegion {
	if regions := payload.MapList(row, "bounding_regions", "regions"); len(regions) > 0 {
		if page, ok := payload.Int(regions[0], "page_number", "page"); ok {
			return &canonical.BoundingRegion{Page: page, Polygon: floatList(regions[0], "polygon")}
		}
	}
	if page, ok := payload.Int(row, "page_number", "page"); ok {
		return &canonical.BoundingRegion{Page: page, Polygon: floatList(row, "polygon")}
	}
	return nil
}

func floatList(row payload.Body, keys ...string) []float64 {
	raw, ok := payload.List(row, keys...)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// signal builds the standard single-entry confidence signal list carrying
// the raw vendor confidence.
func signal(source, method string, confidence float64) []canonical.ConfidenceSignal {
	return []canonical.ConfidenceSignal{{
		Source:     source,
		Confidence: canonical.Clamp01(confidence),
		Method:     method,
	}}
}

// inferSegments derives page segments from span regions when the vendor
// payload carried no explicit page list. Spans without regions count as
// page 1.
func inferSegments(doc *canonical.Document, parser, method string) []canonical.PageSegment {
	seen := map[int]bool{}
	var segments []canonical.PageSegment
	for _, span := range doc.TextSpans {
		page := 1
		if span.Region != nil && span.Region.Page > 0 {
			page = span.Region.Page
		}
		if seen[page] {
			continue
		}
		seen[page] = true
		segments = append(segments, canonical.PageSegment{
			PageNumber: page,
			Parser:     parser,
			Method:     method,
		})
	}
	if len(segments) == 0 {
		segments = []canonical.PageSegment{{PageNumber: 1, Parser: parser, Method: method}}
	}
	return segments
}
