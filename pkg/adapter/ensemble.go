package adapter

import (
	"fmt"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

// Ensemble fans a multi-parser payload out to the named sub-adapters and
// merges their documents in encounter order. The first sub-document
// establishes the identity; the rest contribute their collections.
type Ensemble struct {
	registry *Registry
}

func NewEnsemble(registry *Registry) *Ensemble {
	return &Ensemble{
		registry: registry,
	}
}

func (a *Ensemble) Name() string {
	return "ensemble"
}

func (a *Ensemble) Transform(p payload.Body, meta Meta) (*canonical.Document, error) {
	entries := payload.MapList(p, "parsers")
	if len(entries) == 0 {
		return nil, fmt.Errorf("ensemble payload has no parsers")
	}

	merged := newDocument(meta, metaMimeType(meta))
	if docMeta, ok := payload.Map(p, "document_metadata"); ok {
		for k, v := range docMeta {
			merged.Metadata[k] = v
		}
	}

	var parsersUsed []string
	for i, entry := range entries {
		name, ok := payload.String(entry, "name")
		if !ok || name == "" {
			return nil, fmt.Errorf("ensemble parsers[%d] has no name", i)
		}
		sub, err := a.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("ensemble parsers[%d]: %w", i, err)
		}

		entryPayload, _ := payload.Map(entry, "payload")
		entryMeta := meta
		if extra, ok := payload.Map(entry, "metadata"); ok {
			combined := make(map[string]any, len(meta.Metadata)+len(extra))
			for k, v := range meta.Metadata {
				combined[k] = v
			}
			for k, v := range extra {
				combined[k] = v
			}
			entryMeta.Metadata = combined
		}

		doc, err := sub.Transform(entryPayload, entryMeta)
		if err != nil {
			return nil, fmt.Errorf("ensemble parsers[%d] (%s): %w", i, name, err)
		}

		provider := name
		if entryMetaMap, ok := payload.Map(entry, "metadata"); ok {
			if p, ok := payload.String(entryMetaMap, "provider"); ok && p != "" {
				provider = p
			}
		}
		parsersUsed = append(parsersUsed, provider)

		merged.TextSpans = append(merged.TextSpans, doc.TextSpans...)
		merged.Tables = append(merged.Tables, doc.Tables...)
		merged.Fields = append(merged.Fields, doc.Fields...)
		merged.VisualDescriptions = append(merged.VisualDescriptions, doc.VisualDescriptions...)
		merged.PageSegments = append(merged.PageSegments, doc.PageSegments...)
		merged.Attachments = append(merged.Attachments, doc.Attachments...)
		merged.Summaries = append(merged.Summaries, doc.Summaries...)
		if merged.DocumentType == "" {
			merged.DocumentType = doc.DocumentType
		}
		if merged.MimeType == "" {
			merged.MimeType = doc.MimeType
		}
	}

	for i, attachment := range payload.MapList(p, "attachments") {
		merged.Attachments = append(merged.Attachments, emailAttachment(attachment, meta, i))
	}

	merged.Metadata["parsers_used"] = parsersUsed
	return merged, nil
}
