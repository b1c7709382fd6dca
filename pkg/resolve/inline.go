package resolve

import (
	"context"

	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/router"
)

// InlineResolver surfaces document content embedded directly in the message
// body, either base64-encoded or as a raw string.
type InlineResolver struct{}

func NewInlineResolver() *InlineResolver {
	return &InlineResolver{}
}

func (r *InlineResolver) Fetch(_ context.Context, desc *router.Descriptor) ([]byte, error) {
	return payload.InlineContent(desc.Body), nil
}
