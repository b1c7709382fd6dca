package store

import (
	"context"
	"encoding/json"

	"github.com/docflowhq/docflow/pkg/canonical"
	"github.com/docflowhq/docflow/pkg/concurrent"
)

// Memory is an in-process store for tests and the one-shot route command.
type Memory struct {
	records *concurrent.Map[recordKey, []byte]
}

type recordKey struct {
	documentID string
	checksum   string
}

func NewMemory() *Memory {
	return &Memory{
		records: concurrent.NewMap[recordKey, []byte](),
	}
}

func (s *Memory) HasRecord(_ context.Context, documentID, checksum string) (bool, error) {
	_, ok := s.records.Load(recordKey{documentID, checksum})
	return ok, nil
}

func (s *Memory) Save(_ context.Context, doc *canonical.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.records.Store(recordKey{doc.DocumentID, doc.Checksum}, raw)
	return nil
}

func (s *Memory) Get(_ context.Context, documentID, checksum string) (*canonical.Document, error) {
	raw, ok := s.records.Load(recordKey{documentID, checksum})
	if !ok {
		return nil, ErrNotFound
	}
	return canonical.Decode(raw)
}

// Len reports the number of stored records.
func (s *Memory) Len() int {
	return s.records.Length()
}
