package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvSource resolves secrets from environment variables. The variable name is
// the scope and key uppercased and joined with underscores, so scope
// "idp-prod" and key "layout-model-key" reads IDP_PROD_LAYOUT_MODEL_KEY.
type EnvSource struct{}

func NewEnvSource() *EnvSource {
	return &EnvSource{}
}

func (s *EnvSource) Get(_ context.Context, scope, key string) (string, error) {
	return os.Getenv(EnvName(scope, key)), nil
}

// EnvName converts a (scope, key) pair to its environment variable name.
func EnvName(scope, key string) string {
	name := scope + "_" + key
	if scope == "" {
		name = key
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped
}
