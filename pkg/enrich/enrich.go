// Package enrich runs post-parse enrichment providers over canonical
// documents. Provider failures degrade to warnings; enrichment never fails
// the workflow.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/docflowhq/docflow/pkg/canonical"
)

// Provider produces enrichment rows for a parsed document.
type Provider interface {
	Name() string
	Enrich(ctx context.Context, doc *canonical.Document, batchSize int) ([]canonical.Enrichment, error)
}

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 60 * time.Second

const defaultBatchSize = 20

// Dispatcher routes enrichment requests to registered providers by name.
type Dispatcher struct {
	providers map[string]Provider
	timeout   time.Duration
	batchSize int
}

func NewDispatcher(timeout time.Duration, batchSize int, providers ...Provider) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	d := &Dispatcher{
		providers: make(map[string]Provider, len(providers)),
		timeout:   timeout,
		batchSize: batchSize,
	}
	for _, p := range providers {
		d.providers[p.Name()] = p
	}
	return d
}

// Dispatch runs the named providers in order and returns their combined
// entries. Unknown names, provider errors, and rows without an enrichment
// type are logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *canonical.Document, names []string) []canonical.Enrichment {
	var out []canonical.Enrichment
	for _, name := range names {
		provider, ok := d.providers[name]
		if !ok {
			slog.Warn("unknown enrichment provider", "provider", name)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		start := time.Now()
		entries, err := provider.Enrich(callCtx, doc, d.batchSize)
		cancel()
		if err != nil {
			slog.Warn("enrichment provider failed", "provider", name, "error", err)
			continue
		}

		elapsed := time.Since(start).Milliseconds()
		for _, entry := range entries {
			if entry.EnrichmentType == "" {
				slog.Warn("dropping enrichment without type", "provider", name)
				continue
			}
			if entry.Provider == "" {
				entry.Provider = name
			}
			if entry.DurationMS == 0 {
				entry.DurationMS = elapsed
			}
			out = append(out, entry)
		}
	}
	return out
}
