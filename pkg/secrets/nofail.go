package secrets

import (
	"context"
	"log/slog"
)

type NoFailSource struct {
	source Source
}

func NewNoFailSource(source Source) *NoFailSource {
	return &NoFailSource{
		source: source,
	}
}

func (s *NoFailSource) Get(ctx context.Context, scope, key string) (string, error) {
	value, err := s.source.Get(ctx, scope, key)
	if err != nil {
		slog.Debug("Secret lookup failed", "scope", scope, "key", key, "error", err)
		return "", nil
	}

	return value, nil
}
