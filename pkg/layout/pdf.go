package layout

import (
	"context"
	"log/slog"

	"github.com/docflowhq/docflow/pkg/router"
)

// PageInfo is one page's structural measurement as reported by a PDF
// engine. Area fractions are relative to the page area.
type PageInfo struct {
	TextAreaFraction  float64
	ImageAreaFraction float64
	TableAreaFraction float64
	TableRegions      int
	CharCount         int
	ImageCount        int
	CheckboxWidgets   int
	RadioWidgets      int
}

// Engine is the capability interface over a real PDF library. A nil engine
// means the capability is absent and the structural analyser delegates to
// its fallback.
type Engine interface {
	Open(content []byte) (Doc, error)
}

// Doc is an opened PDF.
type Doc interface {
	Pages() []PageInfo
	Close() error
}

// StructuralPDF profiles a document by walking its PDF structure. When the
// structure cannot be read (no engine, no content, an unopenable file) the
// fallback analyser is used instead.
type StructuralPDF struct {
	engine   Engine
	fallback router.Analyzer
}

func NewStructuralPDF(engine Engine, fallback router.Analyzer) *StructuralPDF {
	if fallback == nil {
		fallback = NewHeuristic()
	}
	return &StructuralPDF{
		engine:   engine,
		fallback: fallback,
	}
}

func (a *StructuralPDF) Analyze(ctx context.Context, desc *router.Descriptor, content []byte) (*router.Profile, error) {
	if a.engine == nil || len(content) == 0 {
		return a.fallback.Analyze(ctx, desc, content)
	}

	doc, err := a.engine.Open(content)
	if err != nil {
		slog.Debug("PDF engine could not open content, using fallback analyser", "object_key", desc.ObjectKey, "error", err)
		return a.fallback.Analyze(ctx, desc, content)
	}
	defer doc.Close()

	infos := doc.Pages()
	if len(infos) == 0 {
		return a.fallback.Analyze(ctx, desc, content)
	}

	pages := make([]router.PageMetrics, 0, len(infos))
	for i, info := range infos {
		pages = append(pages, router.PageMetrics{
			PageIndex:        i,
			TextDensity:      info.TextAreaFraction,
			ImageDensity:     info.ImageAreaFraction,
			TableDensity:     info.TableAreaFraction,
			CharCount:        info.CharCount,
			TableCount:       info.TableRegions,
			ImageCount:       info.ImageCount,
			CheckboxCount:    info.CheckboxWidgets,
			RadioButtonCount: info.RadioWidgets,
		})
	}
	return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, pages), nil
}
