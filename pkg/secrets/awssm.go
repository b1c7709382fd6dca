package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// ManagerAPI is the subset of the Secrets Manager client used by ManagerSource.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ManagerSource reads secrets from AWS Secrets Manager under the id
// "scope/key". A missing secret is not an error.
type ManagerSource struct {
	client ManagerAPI
}

func NewManagerSource(client ManagerAPI) *ManagerSource {
	return &ManagerSource{
		client: client,
	}
}

func (s *ManagerSource) Get(ctx context.Context, scope, key string) (string, error) {
	id := secretID(scope, key)
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading secret %s: %w", id, err)
	}

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}
