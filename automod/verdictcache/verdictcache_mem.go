package verdictcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/watchtower-eng/watchtower/automod/classify"
)

type MemCacheStore struct {
	Data *expirable.LRU[string, classify.Verdict]
}

func NewMemCacheStore(capacity int, ttl time.Duration) MemCacheStore {
	return MemCacheStore{
		Data: expirable.NewLRU[string, classify.Verdict](capacity, nil, ttl),
	}
}

func (s MemCacheStore) Get(ctx context.Context, key string) (*classify.Verdict, error) {
	v, ok := s.Data.Get(key)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s MemCacheStore) Set(ctx context.Context, key string, v classify.Verdict) error {
	s.Data.Add(key, v)
	return nil
}

func (s MemCacheStore) Purge(ctx context.Context, key string) error {
	s.Data.Remove(key)
	return nil
}
