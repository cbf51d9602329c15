package verdictcache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/watchtower-eng/watchtower/automod/classify"
)

type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisCacheKey(key string) string {
	return "verdict/" + key
}

func (s RedisCacheStore) Get(ctx context.Context, key string) (*classify.Verdict, error) {
	var val classify.Verdict
	err := s.Data.Get(ctx, redisCacheKey(key), &val)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &val, nil
}

func (s RedisCacheStore) Set(ctx context.Context, key string, v classify.Verdict) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(key),
		Value: v,
		TTL:   s.TTL,
	})
}

func (s RedisCacheStore) Purge(ctx context.Context, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
