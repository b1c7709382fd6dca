package adapter

import (
	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/payload"
)

const visionParser = "vision_llm"

// Vision normalises vision-model payloads, whose distinguishing output is a
// list of visual descriptions. An overall_description stands in when no
// list was provided.
type Vision struct{}

func NewVision() *Vision {
	return &Vision{}
}

func (a *Vision) Name() string {
	return visionParser
}

func (a *Vision) Transform(p payload.Body, meta Meta) (*canonical.Document, error) {
	doc := newDocument(meta, metaMimeType(meta))

	for _, row := range payload.MapList(p, "visual_descriptions", "visuals") {
		description, _ := payload.String(row, "description", "content", "text")
		confidence := confidenceOr(row, 1.0)
		doc.VisualDescriptions = append(doc.VisualDescriptions, canonical.VisualDescription{
			Description:       description,
			Confidence:        confidence,
			Region:            regionFromRow(row),
			Tags:              stringList(row, "tags"),
			Provenance:        &canonical.Provenance{Parser: visionParser, Method: "visual"},
			ConfidenceSignals: signal(visionParser, "visual", confidence),
		})
	}
	if len(doc.VisualDescriptions) == 0 {
		if overall, ok := payload.String(p, "overall_description"); ok && overall != "" {
			confidence := confidenceOr(p, 1.0)
			doc.VisualDescriptions = append(doc.VisualDescriptions, canonical.VisualDescription{
				Description:       overall,
				Confidence:        confidence,
				Provenance:        &canonical.Provenance{Parser: visionParser, Method: "overall_description"},
				ConfidenceSignals: signal(visionParser, "overall_description", confidence),
			})
		}
	}

	for _, row := range payload.MapList(p, "text_spans", "spans") {
		content, _ := payload.String(row, "content", "text")
		confidence := confidenceOr(row, 1.0)
		doc.TextSpans = append(doc.TextSpans, canonical.TextSpan{
			Content:           content,
			Confidence:        confidence,
			Region:            regionFromRow(row),
			Provenance:        &canonical.Provenance{Parser: visionParser, Method: "ocr"},
			ConfidenceSignals: signal(visionParser, "ocr", confidence),
		})
	}

	if regions := payload.MapList(p, "regions"); len(regions) > 0 {
		seen := map[int]bool{}
		for _, region := range regions {
			page := payload.IntOr(region, 1, "page_number", "page")
			if seen[page] {
				continue
			}
			seen[page] = true
			doc.PageSegments = append(doc.PageSegments, canonical.PageSegment{
				PageNumber: page,
				Parser:     visionParser,
				Method:     "region",
			})
		}
	} else {
		doc.PageSegments = []canonical.PageSegment{{PageNumber: 1, Parser: visionParser, Method: "vision"}}
	}
	return doc, nil
}

func stringList(row payload.Body, keys ...string) []string {
	raw, ok := payload.List(row, keys...)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
