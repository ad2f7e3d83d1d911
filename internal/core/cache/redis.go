package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// genTTL bounds how long a key's invalidation counter outlives its last write.
// A counter that expires mid-load only makes that load skip its store.
const genTTL = 24 * time.Hour

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func genKey(key string) string { return key + ":gen" }

// GetOrLoad returns the cached bytes for key, or calls load once per key across
// concurrent callers and stores its result for ttl. Redis failures fall through to load.
//
// A result is stored only if key was not invalidated while load ran, so a
// write that lands mid-load cannot be shadowed by the value read before it.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		// a flight that finished between our miss and here has stored the value
		if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
			return b, nil
		}
		gen, genErr := c.RDB.Get(ctx, genKey(key)).Int64()
		if genErr != nil && !errors.Is(genErr, redis.Nil) {
			return load(ctx)
		}
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		_ = c.storeIfCurrent(ctx, key, b, ttl, gen)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

var errStale = errors.New("cache: key invalidated during load")

func (c *Cache) storeIfCurrent(ctx context.Context, key string, b []byte, ttl time.Duration, gen int64) error {
	gk := genKey(key)
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, gk)
}

// Invalidate drops keys and bumps their counters so loads already in flight
// discard what they read.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
			p.Expire(ctx, genKey(k), genTTL)
		}
		p.Del(ctx, keys...)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
