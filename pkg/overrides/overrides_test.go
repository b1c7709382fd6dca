package overrides

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/secrets"
	"github.com/docflowhq/docflow/pkg/sqliteutil"
)

func TestParsePayloadShapes(t *testing.T) {
	t.Parallel()

	list := ParsePayload([]byte(`[{"pattern": "invoice", "strategy": "inv"}, {"pattern": "scan", "strategy": "ocr", "model": "m1", "max_pages": 5}]`))
	require.Len(t, list, 2)
	assert.Equal(t, "ocr", list[1].Strategy)
	assert.Equal(t, 5, list[1].MaxPages)

	single := ParsePayload([]byte(`{"pattern": "memo", "strategy": "short"}`))
	require.Len(t, single, 1)
	assert.Equal(t, "memo", single[0].Pattern)

	wrapped := ParsePayload([]byte(`{"pattern_overrides": [{"pattern": "a", "strategy": "b"}]}`))
	require.Len(t, wrapped, 1)
	assert.Equal(t, "a", wrapped[0].Pattern)

	assert.Empty(t, ParsePayload([]byte(`not json at all`)))
}

func TestCompileDropsInvalidEntries(t *testing.T) {
	t.Parallel()

	set := Compile([]Entry{
		{Pattern: "(", Strategy: "broken-regex"},
		{Pattern: "", Strategy: "no-pattern"},
		{Pattern: "ok", Strategy: ""},
		{Pattern: "good", Strategy: "keeper"},
	})
	require.Len(t, set.Overrides, 1)
	assert.Equal(t, "keeper", set.Overrides[0].Strategy.Name)
}

func TestConfiguredConcatenatesSourcesInOrder(t *testing.T) {
	source := secrets.NewStaticSource(map[string]string{
		"scope/strategy-overrides": `[{"pattern": "from-secret", "strategy": "s1"}]`,
	})
	table := &MemoryTable{Rows: []Entry{{Pattern: "from-table", Strategy: "s2"}}}
	t.Setenv(EnvVar, `{"pattern": "from-env", "strategy": "s3"}`)

	provider := NewConfigured(source, "scope", "strategy-overrides", table)
	set := provider.Overrides(context.Background())

	require.Len(t, set.Overrides, 3)
	assert.Equal(t, "s1", set.Overrides[0].Strategy.Name)
	assert.Equal(t, "s2", set.Overrides[1].Strategy.Name)
	assert.Equal(t, "s3", set.Overrides[2].Strategy.Name)
}

func TestConfiguredNeverFails(t *testing.T) {
	t.Setenv(EnvVar, "")

	source := secrets.NewStaticSource(nil)
	table := &MemoryTable{Err: errors.New("table offline")}

	set := NewConfigured(source, "scope", "key", table).Overrides(context.Background())
	require.NotNil(t, set)
	assert.Empty(t, set.Overrides)
}

func TestSQLiteTable(t *testing.T) {
	t.Parallel()

	db, err := sqliteutil.OpenDB(filepath.Join(t.TempDir(), "overrides.db"))
	require.NoError(t, err)
	defer db.Close()

	table, err := NewSQLiteTable(db, "strategy_overrides")
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO "strategy_overrides" (pattern, strategy, model, max_pages) VALUES (?, ?, ?, ?)`,
		"contract", "contract_parser", "c-1", 20)
	require.NoError(t, err)

	entries, err := table.Entries(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Pattern: "contract", Strategy: "contract_parser", Model: "c-1", MaxPages: 20}, entries[0])
}
