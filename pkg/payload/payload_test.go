package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	body, err := Parse([]byte(`{"document_id":"doc-1","pages":3}`))
	require.NoError(t, err)

	id, ok := String(body, "document_id")
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)

	pages, ok := Int(body, "pages")
	require.True(t, ok)
	assert.Equal(t, 3, pages)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"document_id":`))
	require.Error(t, err)
}

func TestLookupCaseTolerant(t *testing.T) {
	t.Parallel()

	body := Body{"textDensity": 0.7, "page_count": 4}

	f, ok := Float(body, "text_density")
	require.True(t, ok)
	assert.InDelta(t, 0.7, f, 1e-9)

	n, ok := Int(body, "pageCount")
	require.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestLookupPrefersExactKey(t *testing.T) {
	t.Parallel()

	body := Body{"text_density": 0.1, "textDensity": 0.9}

	f, ok := Float(body, "text_density")
	require.True(t, ok)
	assert.InDelta(t, 0.1, f, 1e-9)
}

func TestStringCoercions(t *testing.T) {
	t.Parallel()

	body := Body{"a": "  hello ", "b": 42.0, "c": true}

	s, ok := String(body, "a")
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = String(body, "b")
	require.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = String(body, "c")
	require.True(t, ok)
	assert.Equal(t, "true", s)

	_, ok = String(body, "missing")
	assert.False(t, ok)
}

func TestFloatCoercions(t *testing.T) {
	t.Parallel()

	body := Body{"a": "0.55", "b": 3, "c": "not a number"}

	f, ok := Float(body, "a")
	require.True(t, ok)
	assert.InDelta(t, 0.55, f, 1e-9)

	f, ok = Float(body, "b")
	require.True(t, ok)
	assert.InDelta(t, 3.0, f, 1e-9)

	_, ok = Float(body, "c")
	assert.False(t, ok)

	assert.InDelta(t, 0.25, FloatOr(body, 0.25, "missing"), 1e-9)
}

func TestIntCoercions(t *testing.T) {
	t.Parallel()

	body := Body{"a": 7.9, "b": "12", "c": "twelve"}

	n, ok := Int(body, "a")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = Int(body, "b")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = Int(body, "c")
	assert.False(t, ok)

	assert.Equal(t, 99, IntOr(body, 99, "missing"))
}

func TestDig(t *testing.T) {
	t.Parallel()

	body := Body{
		"analyzeResult": map[string]any{
			"content": "hello",
			"meta":    map[string]any{"page_count": 2.0},
		},
	}

	s, ok := DigString(body, "analyze_result", "content")
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	v, ok := Dig(body, "analyzeResult", "meta", "pageCount")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, ok = Dig(body, "analyzeResult", "missing", "deeper")
	assert.False(t, ok)
}

func TestMapList(t *testing.T) {
	t.Parallel()

	body := Body{
		"pages": []any{
			map[string]any{"number": 1.0},
			"stray string",
			map[string]any{"number": 2.0},
		},
	}

	pages := MapList(body, "pages")
	require.Len(t, pages, 2)
	assert.Equal(t, 1.0, pages[0]["number"])
	assert.Equal(t, 2.0, pages[1]["number"])

	assert.Nil(t, MapList(body, "missing"))
}

func TestOtherCase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pageCount", otherCase("page_count"))
	assert.Equal(t, "page_count", otherCase("pageCount"))
	assert.Equal(t, "pages", otherCase("pages"))
}
