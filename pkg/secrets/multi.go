package secrets

import "context"

type MultiSource struct {
	sources []Source
}

func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{
		sources: sources,
	}
}

func (s *MultiSource) Get(ctx context.Context, scope, key string) (string, error) {
	for _, source := range s.sources {
		value, err := source.Get(ctx, scope, key)
		if err != nil {
			return "", err
		}

		if value != "" {
			return value, nil
		}
	}

	return "", nil
}
