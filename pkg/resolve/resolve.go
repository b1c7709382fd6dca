// Package resolve produces document bytes for a routing descriptor. A chain
// of resolvers is tried in order; the first one that yields content wins,
// and failures never abort the chain.
package resolve

import (
	"context"
	"log/slog"

	"github.com/docflowhq/docflow/pkg/router"
)

// Resolver fetches document content for a descriptor. Returning (nil, nil)
// means "not found here"; errors are treated the same way by the chain.
type Resolver interface {
	Fetch(ctx context.Context, desc *router.Descriptor) ([]byte, error)
}

// Chain tries resolvers in order and returns the first non-empty content.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{
		resolvers: resolvers,
	}
}

// Fetch never returns an error: a resolver failure is logged and treated as
// a miss. All-miss yields (nil, nil).
func (c *Chain) Fetch(ctx context.Context, desc *router.Descriptor) ([]byte, error) {
	for _, resolver := range c.resolvers {
		content, err := resolver.Fetch(ctx, desc)
		if err != nil {
			slog.Debug("Content resolver failed, trying next", "object_key", desc.ObjectKey, "error", err)
			continue
		}
		if len(content) > 0 {
			return content, nil
		}
	}
	return nil, nil
}
