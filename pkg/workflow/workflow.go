// Package workflow runs the per-document processing pipeline: checksum
// lookup, vendor analysis with retry, adapter normalisation, email child
// expansion, summarisation, enrichment, and result persistence. The
// pipeline is idempotent per (document_id, checksum).
package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docflowhq/docflow/pkg/adapter"
	"github.com/docflowhq/docflow/pkg/analyze"
	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/enrich"
	"github.com/docflowhq/docflow/pkg/mimetree"
	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/store"
	"github.com/docflowhq/docflow/pkg/summary"
)

const (
	// maxEmailDepth bounds recursive attachment expansion.
	maxEmailDepth = 3

	defaultAdapter    = "ensemble"
	defaultMaxRetries = 2
	defaultBackoff    = 2 * time.Second
)

// Request is one document to process.
type Request struct {
	DocumentID  string
	Content     []byte
	SourceURI   string
	Metadata    map[string]any
	Pages       int
	ContentType string
	Force       bool
	Enrichments []string
}

// Result is the processing outcome. Skipped means an identical
// (document_id, checksum) record already exists and Force was not set.
type Result struct {
	Document *canonical.Document
	Skipped  bool
}

// Config wires the workflow's collaborators. Analyzer, Registry, and Store
// are required; the rest are optional.
type Config struct {
	Analyzer    analyze.Analyzer
	Registry    *adapter.Registry
	Store       store.Store
	Summarizer  summary.Summarizer
	Enricher    *enrich.Dispatcher
	AdapterName string
	MaxRetries  int
	Backoff     time.Duration
	// Sleep is the inter-retry wait, injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Workflow is the per-document pipeline. Safe for concurrent use.
type Workflow struct {
	cfg Config
}

func New(cfg Config) (*Workflow, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("workflow requires an analyzer")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("workflow requires an adapter registry")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("workflow requires a result store")
	}
	if cfg.AdapterName == "" {
		cfg.AdapterName = defaultAdapter
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Workflow{cfg: cfg}, nil
}

// Process runs the pipeline for one document.
func (w *Workflow) Process(ctx context.Context, req Request) (*Result, error) {
	return w.process(ctx, req, 0)
}

func (w *Workflow) process(ctx context.Context, req Request, depth int) (*Result, error) {
	checksum := Checksum(req.Content)
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	if !req.Force {
		exists, err := w.cfg.Store.HasRecord(ctx, documentID, checksum)
		if err != nil {
			return nil, fmt.Errorf("checking record for %s: %w", documentID, err)
		}
		if exists {
			slog.Debug("skipping already-processed document", "document_id", documentID, "checksum", checksum)
			return &Result{Skipped: true}, nil
		}
	}

	doc, err := w.analyzeAndTransform(ctx, req, documentID, checksum, depth)
	if err != nil {
		return nil, err
	}

	if w.cfg.Summarizer != nil {
		doc.Summaries = append(doc.Summaries, w.cfg.Summarizer.Summarize(doc)...)
	}
	if len(req.Enrichments) > 0 && w.cfg.Enricher != nil {
		doc.Enrichments = append(doc.Enrichments, w.cfg.Enricher.Dispatch(ctx, doc, req.Enrichments)...)
	}

	if err := w.cfg.Store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document %s: %w", documentID, err)
	}
	return &Result{Document: doc}, nil
}

// analyzeAndTransform runs vendor analysis and adapter normalisation,
// then expands email attachments into child documents.
func (w *Workflow) analyzeAndTransform(ctx context.Context, req Request, documentID, checksum string, depth int) (*canonical.Document, error) {
	body, err := w.analyzeWithRetry(ctx, analyze.Request{
		DocumentID:  documentID,
		Content:     req.Content,
		ContentType: req.ContentType,
		Pages:       req.Pages,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("analysing document %s: %w", documentID, err)
	}

	name := w.cfg.AdapterName
	if requested, ok := payload.String(req.Metadata, "parser"); ok && requested != "" {
		name = requested
	}
	a, err := w.cfg.Registry.Get(name)
	if err != nil {
		return nil, err
	}

	doc, err := a.Transform(body, adapter.Meta{
		DocumentID: documentID,
		SourceURI:  req.SourceURI,
		Checksum:   checksum,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("transforming document %s via %s: %w", documentID, name, err)
	}
	if doc.MimeType == "" {
		doc.MimeType = req.ContentType
	}

	if strings.HasPrefix(effectiveMimeType(req), "message/") && depth < maxEmailDepth {
		w.expandAttachments(ctx, doc, req, documentID, depth)
	}
	return doc, nil
}

// expandAttachments walks the message's MIME parts and processes each
// attachment as a child document. A child failure records the attachment
// without a document rather than failing the parent.
func (w *Workflow) expandAttachments(ctx context.Context, doc *canonical.Document, req Request, documentID string, depth int) {
	msg, err := mimetree.Parse(req.Content)
	if err != nil {
		slog.Warn("cannot walk email attachments", "document_id", documentID, "error", err)
		return
	}
	for i, part := range msg.Attachments() {
		n := i + 1
		childID := fmt.Sprintf("%s::attachment-%d", documentID, n)
		childSource := fmt.Sprintf("%s#attachment/%s", req.SourceURI, part.FileName)

		att := canonical.Attachment{
			AttachmentID: childID,
			FileName:     part.FileName,
			MimeType:     part.MediaType,
			Checksum:     Checksum(part.Content),
			SourceURI:    childSource,
		}

		child, err := w.analyzeAndTransform(ctx, Request{
			Content:     part.Content,
			SourceURI:   childSource,
			Metadata:    req.Metadata,
			ContentType: part.MediaType,
		}, childID, att.Checksum, depth+1)
		if err != nil {
			slog.Warn("attachment processing failed", "document_id", documentID, "attachment", part.FileName, "error", err)
		} else {
			att.Document = child
		}
		doc.Attachments = append(doc.Attachments, att)
	}
}

// analyzeWithRetry retries with linear backoff: after failed attempt i the
// wait is i times the configured backoff.
func (w *Workflow) analyzeWithRetry(ctx context.Context, req analyze.Request) (payload.Body, error) {
	attempts := w.cfg.MaxRetries + 1
	var lastErr error
	for i := 1; i <= attempts; i++ {
		body, err := w.cfg.Analyzer.Analyze(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if i < attempts {
			slog.Warn("analyse attempt failed, retrying", "document_id", req.DocumentID, "attempt", i, "error", err)
			if err := w.cfg.Sleep(ctx, time.Duration(i)*w.cfg.Backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func effectiveMimeType(req Request) string {
	if req.ContentType != "" {
		return req.ContentType
	}
	mime, _ := payload.String(req.Metadata, "mime_type", "content_type")
	return mime
}

// Checksum is the content identity used for idempotence.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
