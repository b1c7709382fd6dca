package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/canonical"
)

func testDoc(id, checksum string) *canonical.Document {
	return &canonical.Document{
		DocumentID:    id,
		SourceURI:     "s3://b/" + id,
		Checksum:      checksum,
		SchemaVersion: canonical.SchemaVersion,
		TextSpans:     []canonical.TextSpan{{Content: "hello", Confidence: 1}},
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemory()

	ok, err := s.HasRecord(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(t.Context(), testDoc("d1", "c1")))

	ok, err = s.HasRecord(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := s.Get(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.TextSpans[0].Content)

	_, err = s.Get(t.Context(), "d1", "other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.HasRecord(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(t.Context(), testDoc("d1", "c1")))

	ok, err = s.HasRecord(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Same key twice upserts rather than failing.
	updated := testDoc("d1", "c1")
	updated.TextSpans[0].Content = "updated"
	require.NoError(t, s.Save(t.Context(), updated))

	doc, err := s.Get(t.Context(), "d1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "updated", doc.TextSpans[0].Content)

	_, err = s.Get(t.Context(), "missing", "c1")
	require.ErrorIs(t, err, ErrNotFound)
}
