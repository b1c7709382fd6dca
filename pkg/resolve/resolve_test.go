package resolve

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowhq/docflow/pkg/payload"
	"github.com/docflowhq/docflow/pkg/router"
)

type stubResolver struct {
	content []byte
	err     error
	calls   int
}

func (r *stubResolver) Fetch(context.Context, *router.Descriptor) ([]byte, error) {
	r.calls++
	return r.content, r.err
}

func TestChainFirstHitWins(t *testing.T) {
	t.Parallel()

	miss := &stubResolver{}
	hit := &stubResolver{content: []byte("content")}
	never := &stubResolver{content: []byte("other")}

	chain := NewChain(miss, hit, never)
	content, err := chain.Fetch(t.Context(), &router.Descriptor{ObjectKey: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)
	assert.Equal(t, 1, miss.calls)
	assert.Equal(t, 1, hit.calls)
	assert.Zero(t, never.calls)
}

func TestChainToleratesResolverErrors(t *testing.T) {
	t.Parallel()

	failing := &stubResolver{err: errors.New("boom")}
	hit := &stubResolver{content: []byte("content")}

	content, err := NewChain(failing, hit).Fetch(t.Context(), &router.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), content)
}

func TestChainAllMiss(t *testing.T) {
	t.Parallel()

	content, err := NewChain(&stubResolver{}, &stubResolver{}).Fetch(t.Context(), &router.Descriptor{})
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestInlineResolverBase64(t *testing.T) {
	t.Parallel()

	desc := &router.Descriptor{Body: payload.Body{
		"documentBytes": base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")),
	}}
	content, err := NewInlineResolver().Fetch(t.Context(), desc)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), content)
}

func TestInlineResolverRawString(t *testing.T) {
	t.Parallel()

	desc := &router.Descriptor{Body: payload.Body{
		"document_content": "plain text, not base64!",
	}}
	content, err := NewInlineResolver().Fetch(t.Context(), desc)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain text, not base64!"), content)
}

func TestInlineResolverMetadataInlineContent(t *testing.T) {
	t.Parallel()

	desc := &router.Descriptor{Body: payload.Body{
		"documentMetadata": map[string]any{"inlineContent": "aGVsbG8="},
	}}
	content, err := NewInlineResolver().Fetch(t.Context(), desc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

type stubS3 struct {
	input *s3.GetObjectInput
	body  string
	err   error
}

func (s *stubS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestS3ResolverRangeHeader(t *testing.T) {
	t.Parallel()

	api := &stubS3{body: "pdf bytes"}
	resolver := NewS3Resolver(api, 1024)

	content, err := resolver.Fetch(t.Context(), &router.Descriptor{Bucket: "b", ObjectKey: "k.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), content)
	require.NotNil(t, api.input)
	assert.Equal(t, "b", *api.input.Bucket)
	assert.Equal(t, "k.pdf", *api.input.Key)
	assert.Equal(t, "bytes=0-1023", *api.input.Range)
}

func TestS3ResolverMissingObjectIsMiss(t *testing.T) {
	t.Parallel()

	resolver := NewS3Resolver(&stubS3{err: &s3types.NoSuchKey{}}, 0)
	content, err := resolver.Fetch(t.Context(), &router.Descriptor{Bucket: "b", ObjectKey: "gone.pdf"})
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestS3ResolverNoBucketIsMiss(t *testing.T) {
	t.Parallel()

	api := &stubS3{}
	content, err := NewS3Resolver(api, 0).Fetch(t.Context(), &router.Descriptor{ObjectKey: "k.pdf"})
	require.NoError(t, err)
	assert.Nil(t, content)
	assert.Nil(t, api.input)
}
