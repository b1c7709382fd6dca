package secrets

import "context"

// StaticSource serves secrets from an in-memory map keyed "scope/key".
// Used in tests and for locally injected credentials.
type StaticSource struct {
	values map[string]string
}

func NewStaticSource(values map[string]string) *StaticSource {
	if values == nil {
		values = map[string]string{}
	}
	return &StaticSource{values: values}
}

func (s *StaticSource) Get(_ context.Context, scope, key string) (string, error) {
	return s.values[secretID(scope, key)], nil
}

func secretID(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "/" + key
}
