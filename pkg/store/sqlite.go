package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/sqliteutil"
)

// SQLite stores canonical documents in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the result store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, err
	}

	schema := `CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT NOT NULL,
		checksum TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (document_id, checksum)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) HasRecord(ctx context.Context, documentID, checksum string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE document_id = ? AND checksum = ?`,
		documentID, checksum).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking record (%s, %s): %w", documentID, checksum, err)
	}
	return true, nil
}

func (s *SQLite) Save(ctx context.Context, doc *canonical.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", doc.DocumentID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (document_id, checksum, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (document_id, checksum) DO UPDATE SET payload = excluded.payload`,
		doc.DocumentID, doc.Checksum, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.DocumentID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, documentID, checksum string) (*canonical.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE document_id = ? AND checksum = ?`,
		documentID, checksum).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document (%s, %s): %w", documentID, checksum, err)
	}
	return canonical.Decode([]byte(raw))
}
