package layout

import (
	"context"
	"strings"

	"github.com/docflowhq/docflow/pkg/router"
)

// Selector picks an analyser by the descriptor's MIME type: the email
// analyser for message/*, the PDF analyser for application/pdf, and the
// generic analyser for everything else.
type Selector struct {
	pdf     router.Analyzer
	email   router.Analyzer
	generic router.Analyzer
}

func NewSelector(pdf, email, generic router.Analyzer) *Selector {
	if generic == nil {
		generic = NewHeuristic()
	}
	if pdf == nil {
		pdf = generic
	}
	if email == nil {
		email = generic
	}
	return &Selector{
		pdf:     pdf,
		email:   email,
		generic: generic,
	}
}

func (s *Selector) Analyze(ctx context.Context, desc *router.Descriptor, content []byte) (*router.Profile, error) {
	switch {
	case strings.HasPrefix(desc.MimeType, "message/"):
		return s.email.Analyze(ctx, desc, content)
	case desc.MimeType == "application/pdf":
		return s.pdf.Analyze(ctx, desc, content)
	default:
		return s.generic.Analyze(ctx, desc, content)
	}
}
