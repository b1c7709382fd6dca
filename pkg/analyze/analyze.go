// Package analyze calls the vendor document-analysis endpoint and returns
// its raw parser payload for adapter normalisation.
package analyze

import (
	"context"

	"github.com/docflowhq/docflow/pkg/payload"
)

// Request describes one document to analyse.
type Request struct {
	DocumentID  string
	Content     []byte
	ContentType string
	Pages       int
	Metadata    map[string]any
}

// Analyzer produces a raw parser payload for a document.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (payload.Body, error)
}

// Func adapts a function to the Analyzer interface.
type Func func(ctx context.Context, req Request) (payload.Body, error)

func (f Func) Analyze(ctx context.Context, req Request) (payload.Body, error) {
	return f(ctx, req)
}
