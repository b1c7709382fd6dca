package secrets

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedSource memoises lookups for a TTL so the per-cycle override refresh
// does not hit the backing store on every poll.
type CachedSource struct {
	source Source
	cache  *gocache.Cache
}

func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSource{
		source: source,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedSource) Get(ctx context.Context, scope, key string) (string, error) {
	id := secretID(scope, key)
	if value, ok := s.cache.Get(id); ok {
		return value.(string), nil
	}

	value, err := s.source.Get(ctx, scope, key)
	if err != nil {
		return "", err
	}

	s.cache.Set(id, value, gocache.DefaultExpiration)
	return value, nil
}
