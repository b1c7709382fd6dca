// Package summary produces document summaries without calling a model.
package summary

import (
	"regexp"
	"strings"

	"github.com/docflowhq/docflow/pkg/canonical"
)

// Summarizer derives summary rows from an already-parsed document.
type Summarizer interface {
	Summarize(doc *canonical.Document) []canonical.Summary
}

const (
	// maxInputChars caps the text fed to sentence extraction.
	maxInputChars = 6000
	// maxSummaryChars caps the emitted document summary.
	maxSummaryChars = 512
	// maxTitleChars and maxTitleSpaces bound what counts as a title-like span.
	maxTitleChars  = 120
	maxTitleSpaces = 15

	heuristicConfidence = 0.3
)

var sentenceEnd = regexp.MustCompile(`[.!?]+[\s"')\]]*`)

// Heuristic emits a leading-sentences summary plus a title guess from the
// first short span. It is the default when no model summariser is wired.
type Heuristic struct{}

func (Heuristic) Summarize(doc *canonical.Document) []canonical.Summary {
	if doc == nil || len(doc.TextSpans) == 0 {
		return nil
	}

	var summaries []canonical.Summary
	if text := joinedText(doc.TextSpans); text != "" {
		if lead := leadingSentences(text, 2, maxSummaryChars); lead != "" {
			summaries = append(summaries, canonical.Summary{
				Summary:    lead,
				Confidence: heuristicConfidence,
				Method:     "heuristic_leading_sentences",
				Metadata:   map[string]any{"scope": "document"},
			})
		}
	}
	if title := titleCandidate(doc.TextSpans); title != "" {
		summaries = append(summaries, canonical.Summary{
			Summary:    title,
			Title:      title,
			Confidence: heuristicConfidence,
			Method:     "first_span_title",
			Metadata:   map[string]any{"scope": "title"},
		})
	}
	return summaries
}

// joinedText concatenates span contents, dropping exact duplicates while
// keeping first-seen order, capped at maxInputChars.
func joinedText(spans []canonical.TextSpan) string {
	seen := make(map[string]struct{}, len(spans))
	var b strings.Builder
	for _, span := range spans {
		content := strings.TrimSpace(span.Content)
		if content == "" {
			continue
		}
		if _, dup := seen[content]; dup {
			continue
		}
		seen[content] = struct{}{}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(content)
		if b.Len() >= maxInputChars {
			break
		}
	}
	text := b.String()
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}
	return text
}

// leadingSentences returns up to n sentences from text, capped at maxChars.
func leadingSentences(text string, n, maxChars int) string {
	ends := sentenceEnd.FindAllStringIndex(text, n)
	var lead string
	if len(ends) == 0 {
		lead = text
	} else {
		lead = text[:ends[len(ends)-1][1]]
	}
	lead = strings.TrimSpace(lead)
	if len(lead) > maxChars {
		lead = strings.TrimSpace(lead[:maxChars])
	}
	return lead
}

// titleCandidate returns the first span short enough to plausibly be a
// title.
func titleCandidate(spans []canonical.TextSpan) string {
	for _, span := range spans {
		content := strings.TrimSpace(span.Content)
		if content == "" {
			continue
		}
		if len(content) <= maxTitleChars && strings.Count(content, " ") <= maxTitleSpaces {
			return content
		}
		return ""
	}
	return ""
}
