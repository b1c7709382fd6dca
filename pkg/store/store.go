// Package store persists canonical documents keyed by (document_id,
// checksum). The key makes workflow writes idempotent: processing the same
// content twice produces one record.
package store

import (
	"context"
	"errors"

	"github.com/docflowhq/docflow/pkg/canonical"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("document record not found")

// Store is the canonical-document result store.
type Store interface {
	// HasRecord reports whether a record exists for (documentID, checksum).
	HasRecord(ctx context.Context, documentID, checksum string) (bool, error)
	// Save writes the document, replacing any record with the same key.
	Save(ctx context.Context, doc *canonical.Document) error
	// Get loads a stored document or ErrNotFound.
	Get(ctx context.Context, documentID, checksum string) (*canonical.Document, error)
}
