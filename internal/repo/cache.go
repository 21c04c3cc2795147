package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/model"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryCache is a process local Cache.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.data, key)
		return "", false
	}
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.data[key] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// CachedRepository serves GetGoldRate and GetInterestScheme from a Cache and
// drops the affected keys on every write.
//
// Each key carries a generation bumped by every write. A read that started
// before a write does not store its result, so a slow miss cannot put back
// a value the write just invalidated. This holds within one process; other
// instances sharing the Redis cache are bounded by the TTL.
type CachedRepository struct {
	Repository
	cache Cache
	ttl   time.Duration
	log   *logrus.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

func NewCachedRepository(inner Repository, cache Cache, ttl time.Duration, log *logrus.Logger) *CachedRepository {
	return &CachedRepository{Repository: inner, cache: cache, ttl: ttl, log: log, gen: make(map[string]uint64)}
}

func rateKey(purity model.Purity, schemeID int) string {
	return fmt.Sprintf("goldpledge:rate:%s:%d", purity, schemeID)
}

func schemeKey(id int) string {
	return fmt.Sprintf("goldpledge:scheme:%d", id)
}

func (r *CachedRepository) GetGoldRate(ctx context.Context, purity model.Purity, schemeID int) (model.GoldRate, error) {
	var gr model.GoldRate
	key := rateKey(purity, schemeID)
	if r.load(ctx, key, &gr) {
		return gr, nil
	}
	gen := r.generation(key)
	gr, err := r.Repository.GetGoldRate(ctx, purity, schemeID)
	if err != nil {
		return gr, err
	}
	r.store(ctx, key, gen, gr)
	return gr, nil
}

func (r *CachedRepository) GetInterestScheme(ctx context.Context, id int) (model.InterestScheme, error) {
	var s model.InterestScheme
	key := schemeKey(id)
	if r.load(ctx, key, &s) {
		return s, nil
	}
	gen := r.generation(key)
	s, err := r.Repository.GetInterestScheme(ctx, id)
	if err != nil {
		return s, err
	}
	r.store(ctx, key, gen, s)
	return s, nil
}

func (r *CachedRepository) UpsertGoldRate(ctx context.Context, purity model.Purity, schemeID int, ratePerGram float64) (model.GoldRate, error) {
	gr, err := r.Repository.UpsertGoldRate(ctx, purity, schemeID, ratePerGram)
	if err != nil {
		return gr, err
	}
	r.invalidate(ctx, rateKey(purity, schemeID))
	return gr, nil
}

func (r *CachedRepository) DeleteGoldRate(ctx context.Context, id int) error {
	rates, err := r.Repository.ListGoldRates(ctx)
	if err != nil {
		return err
	}
	if err := r.Repository.DeleteGoldRate(ctx, id); err != nil {
		return err
	}
	for _, gr := range rates {
		if gr.ID == id {
			r.invalidate(ctx, rateKey(gr.Purity, gr.InterestSchemeID))
		}
	}
	return nil
}

func (r *CachedRepository) UpdateInterestScheme(ctx context.Context, s model.InterestScheme) (model.InterestScheme, error) {
	s, err := r.Repository.UpdateInterestScheme(ctx, s)
	if err != nil {
		return s, err
	}
	r.invalidate(ctx, schemeKey(s.ID))
	return s, nil
}

func (r *CachedRepository) DeleteInterestScheme(ctx context.Context, id int) error {
	if err := r.Repository.DeleteInterestScheme(ctx, id); err != nil {
		return err
	}
	keys := []string{schemeKey(id)}
	for _, p := range model.Purities {
		keys = append(keys, rateKey(p, id))
	}
	r.invalidate(ctx, keys...)
	return nil
}

func (r *CachedRepository) load(ctx context.Context, key string, v any) bool {
	raw, ok := r.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("discarding unreadable cache entry")
		return false
	}
	return true
}

func (r *CachedRepository) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[key]
}

// store caches v unless key was written since gen was read.
func (r *CachedRepository) store(ctx context.Context, key string, gen uint64, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[key] != gen {
		return
	}
	if err := r.cache.Set(ctx, key, string(b), r.ttl); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (r *CachedRepository) invalidate(ctx context.Context, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.gen[k]++
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}
