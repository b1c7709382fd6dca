package layout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/layout/layoutmodel"
	"github.com/docflowhq/docflow/pkg/router"
)

type stubModelClient struct {
	req  layoutmodel.Request
	rows []layoutmodel.PageRow
	err  error
}

func (c *stubModelClient) Profile(_ context.Context, req layoutmodel.Request) ([]layoutmodel.PageRow, error) {
	c.req = req
	return c.rows, c.err
}

func TestModelBacked(t *testing.T) {
	t.Parallel()

	client := &stubModelClient{rows: []layoutmodel.PageRow{
		{Index: 0, TextDensity: 0.9, CharCount: 800},
		{Index: 1, TableDensity: 0.7, TableCount: 1},
	}}
	desc := descriptorWithMetadata(t, `{"documentMetadata": {"pageCount": 2}}`)

	profile, err := NewModelBacked(client, "layout-v2", nil).Analyze(t.Context(), desc, []byte("content"))
	require.NoError(t, err)

	assert.Equal(t, 2, profile.PageCount)
	assert.Equal(t, 1, profile.TotalTables)
	assert.Equal(t, "layout-v2", client.req.ModelType)
	assert.Equal(t, 2, client.req.PageCount)
	assert.Equal(t, []byte("content"), client.req.Document)
}

func TestModelBackedFallsBackOnError(t *testing.T) {
	t.Parallel()

	client := &stubModelClient{err: errors.New("timeout")}
	desc := descriptorWithMetadata(t, `{"documentMetadata": {"pageCount": 5}}`)

	profile, err := NewModelBacked(client, "", NewHeuristic()).Analyze(t.Context(), desc, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, profile.PageCount)
}

func TestModelBackedFallsBackOnEmptyResponse(t *testing.T) {
	t.Parallel()

	client := &stubModelClient{}
	desc := descriptorWithMetadata(t, `{"documentMetadata": {"pageCount": 3}}`)

	profile, err := NewModelBacked(client, "", NewHeuristic()).Analyze(t.Context(), desc, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.PageCount)
}

func TestModelBackedNilClientUsesFallback(t *testing.T) {
	t.Parallel()

	profile, err := NewModelBacked(nil, "", NewHeuristic()).Analyze(t.Context(), &router.Descriptor{ObjectKey: "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.PageCount)
}
