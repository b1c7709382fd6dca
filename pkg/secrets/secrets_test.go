package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IDP_PROD_LAYOUT_MODEL_KEY", EnvName("idp-prod", "layout-model-key"))
	assert.Equal(t, "STRATEGY_OVERRIDES", EnvName("", "strategy.overrides"))
}

func TestEnvSource(t *testing.T) {
	t.Setenv("IDP_LAYOUT_KEY", "token-123")

	source := NewEnvSource()
	value, err := source.Get(t.Context(), "idp", "layout-key")
	require.NoError(t, err)
	assert.Equal(t, "token-123", value)

	value, err = source.Get(t.Context(), "idp", "missing")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestStaticSource(t *testing.T) {
	t.Parallel()

	source := NewStaticSource(map[string]string{"idp/api-key": "abc"})

	value, err := source.Get(t.Context(), "idp", "api-key")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	value, err = source.Get(t.Context(), "idp", "other")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestMultiSourceTryInOrder(t *testing.T) {
	t.Parallel()

	source := NewMultiSource(
		NewStaticSource(nil),
		NewStaticSource(map[string]string{"idp/api-key": "from-second"}),
	)

	value, err := source.Get(t.Context(), "idp", "api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-second", value)
}

func TestMultiSourceFails(t *testing.T) {
	t.Parallel()

	source := NewMultiSource(&alwaysFail{})
	_, err := source.Get(t.Context(), "idp", "api-key")
	require.Error(t, err)
}

func TestNoFailSource(t *testing.T) {
	t.Parallel()

	source := NewNoFailSource(&alwaysFail{})
	value, err := source.Get(t.Context(), "idp", "api-key")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCachedSource(t *testing.T) {
	t.Parallel()

	counting := &countingSource{value: "v1"}
	source := NewCachedSource(counting, time.Minute)

	for range 3 {
		value, err := source.Get(t.Context(), "idp", "api-key")
		require.NoError(t, err)
		assert.Equal(t, "v1", value)
	}

	assert.Equal(t, 1, counting.calls)
}

func TestManagerSource(t *testing.T) {
	t.Parallel()

	client := &fakeManager{secrets: map[string]string{"idp/api-key": "sm-value"}}
	source := NewManagerSource(client)

	value, err := source.Get(t.Context(), "idp", "api-key")
	require.NoError(t, err)
	assert.Equal(t, "sm-value", value)
}

func TestManagerSourceNotFound(t *testing.T) {
	t.Parallel()

	source := NewManagerSource(&fakeManager{})

	value, err := source.Get(t.Context(), "idp", "missing")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestManagerSourceError(t *testing.T) {
	t.Parallel()

	source := NewManagerSource(&fakeManager{err: errors.New("throttled")})

	_, err := source.Get(t.Context(), "idp", "api-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idp/api-key")
}

type alwaysFail struct{}

func (s *alwaysFail) Get(context.Context, string, string) (string, error) {
	return "", errors.New("unavailable")
}

type countingSource struct {
	value string
	calls int
}

func (s *countingSource) Get(context.Context, string, string) (string, error) {
	s.calls++
	return s.value, nil
}

type fakeManager struct {
	secrets map[string]string
	err     error
}

func (f *fakeManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}
