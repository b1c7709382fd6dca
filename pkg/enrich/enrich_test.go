package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/canonical"
)

type stubProvider struct {
	name    string
	entries []canonical.Enrichment
	err     error
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Enrich(_ context.Context, _ *canonical.Document, _ int) ([]canonical.Enrichment, error) {
	p.calls++
	return p.entries, p.err
}

func TestDispatchCollectsInOrder(t *testing.T) {
	t.Parallel()

	first := &stubProvider{name: "entities", entries: []canonical.Enrichment{
		{EnrichmentType: "entity", Content: map[string]any{"text": "ACME"}},
	}}
	second := &stubProvider{name: "topics", entries: []canonical.Enrichment{
		{EnrichmentType: "topic", Content: map[string]any{"label": "finance"}},
	}}

	d := NewDispatcher(time.Second, 10, first, second)
	entries := d.Dispatch(t.Context(), &canonical.Document{DocumentID: "d"}, []string{"entities", "topics"})

	require.Len(t, entries, 2)
	assert.Equal(t, "entity", entries[0].EnrichmentType)
	assert.Equal(t, "entities", entries[0].Provider)
	assert.Equal(t, "topic", entries[1].EnrichmentType)
	assert.GreaterOrEqual(t, entries[0].DurationMS, int64(0))
}

func TestDispatchSkipsUnknownProvider(t *testing.T) {
	t.Parallel()

	known := &stubProvider{name: "entities", entries: []canonical.Enrichment{{EnrichmentType: "entity"}}}
	d := NewDispatcher(time.Second, 10, known)
	entries := d.Dispatch(t.Context(), &canonical.Document{}, []string{"missing", "entities"})

	require.Len(t, entries, 1)
	assert.Equal(t, "entity", entries[0].EnrichmentType)
}

func TestDispatchProviderErrorIsNonFatal(t *testing.T) {
	t.Parallel()

	failing := &stubProvider{name: "broken", err: errors.New("model down")}
	ok := &stubProvider{name: "entities", entries: []canonical.Enrichment{{EnrichmentType: "entity"}}}

	d := NewDispatcher(time.Second, 10, failing, ok)
	entries := d.Dispatch(t.Context(), &canonical.Document{}, []string{"broken", "entities"})

	assert.Equal(t, 1, failing.calls)
	require.Len(t, entries, 1)
	assert.Equal(t, "entities", entries[0].Provider)
}

func TestDispatchDropsUntypedEntries(t *testing.T) {
	t.Parallel()

	p := &stubProvider{name: "entities", entries: []canonical.Enrichment{
		{Content: map[string]any{"text": "no type"}},
		{EnrichmentType: "entity"},
	}}
	d := NewDispatcher(time.Second, 10, p)
	entries := d.Dispatch(t.Context(), &canonical.Document{}, []string{"entities"})
	require.Len(t, entries, 1)
	assert.Equal(t, "entity", entries[0].EnrichmentType)
}
