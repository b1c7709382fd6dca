package layout

import (
	"context"
	"log/slog"

	"github.com/docflowhq/docflow/pkg/layout/layoutmodel"
	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/router"
)

// ModelClient is the capability interface over the layout model service.
type ModelClient interface {
	Profile(ctx context.Context, req layoutmodel.Request) ([]layoutmodel.PageRow, error)
}

// ModelBacked delegates profiling to an external layout model, falling back
// to a wrapped analyser on any failure or empty response.
type ModelBacked struct {
	client    ModelClient
	modelType string
	fallback  router.Analyzer
}

func NewModelBacked(client ModelClient, modelType string, fallback router.Analyzer) *ModelBacked {
	if fallback == nil {
		fallback = NewHeuristic()
	}
	return &ModelBacked{
		client:    client,
		modelType: modelType,
		fallback:  fallback,
	}
}

func (a *ModelBacked) Analyze(ctx context.Context, desc *router.Descriptor, content []byte) (*router.Profile, error) {
	if a.client == nil {
		return a.fallback.Analyze(ctx, desc, content)
	}

	meta, _ := payload.Map(desc.Body, "documentMetadata")
	rows, err := a.client.Profile(ctx, layoutmodel.Request{
		ObjectKey: desc.ObjectKey,
		Bucket:    desc.Bucket,
		MimeType:  desc.MimeType,
		PageCount: payload.IntOr(meta, 0, "pageCount", "page_count"),
		Metadata:  meta,
		ModelType: a.modelType,
		Document:  content,
	})
	if err != nil || len(rows) == 0 {
		slog.Warn("Layout model unavailable, using fallback analyser", "object_key", desc.ObjectKey, "error", err)
		return a.fallback.Analyze(ctx, desc, content)
	}

	pages := make([]router.PageMetrics, 0, len(rows))
	for _, row := range rows {
		pages = append(pages, router.PageMetrics{
			PageIndex:        row.Index,
			TextDensity:      row.TextDensity,
			ImageDensity:     row.ImageDensity,
			TableDensity:     row.TableDensity,
			CharCount:        row.CharCount,
			TableCount:       row.TableCount,
			ImageCount:       row.ImageCount,
			CheckboxCount:    row.CheckboxCount,
			RadioButtonCount: row.RadioButtonCount,
		})
	}
	return router.BuildProfile(desc.ObjectKey, desc.Bucket, desc.MimeType, pages), nil
}
