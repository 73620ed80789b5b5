// Package cache implements the ephemeral key/value store used for one-time codes,
// access-token blacklist entries and login throttling. It wraps Redis with bounded
// retries and degrades to "no caching" when Redis is unavailable: reads become
// misses, writes are dropped, and a health flag reports the outage.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Client is the subset of the go-redis API used by Cache. *redis.Client and
// *redis.ClusterClient implement it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Options tunes retry and health check behavior. Zero values take the defaults.
type Options struct {
	Attempts       int           // total attempts per operation, default 3
	RetryBase      time.Duration // first backoff, doubled per retry, default 100ms
	OpTimeout      time.Duration // per-attempt deadline, 0 = none
	HealthInterval time.Duration // background ping period, default 30s

	// OnHealthChange is called when the health flag flips.
	OnHealthChange func(healthy bool)
	// OnFailure is called once per operation that exhausted its retries.
	OnFailure func(op string)
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 100 * time.Millisecond
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 30 * time.Second
	}
	return o
}

// Cache is safe for concurrent use.
type Cache struct {
	client  Client
	log     *zap.Logger
	opts    Options
	healthy atomic.Bool
}

// New wraps client. The cache starts out healthy; call Run to keep checking it.
func New(client Client, log *zap.Logger, opts Options) *Cache {
	c := &Cache{client: client, log: log, opts: opts.withDefaults()}
	c.healthy.Store(true)
	return c
}

// Healthy reports the last observed state of the backing store. Informational only.
func (c *Cache) Healthy() bool { return c.healthy.Load() }

// Get decodes the JSON value at key into dst. It returns false on a miss, on a
// backend failure after retries, and on a value that does not decode into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	var raw []byte
	err := c.do(ctx, "get", func(ctx context.Context) error {
		b, err := c.client.Get(ctx, key).Bytes()
		raw = b
		return err
	})
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache: undecodable value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Take atomically reads and removes the JSON value at key. Of several concurrent
// callers at most one observes the value.
func (c *Cache) Take(ctx context.Context, key string, dst any) bool {
	var raw []byte
	err := c.do(ctx, "getdel", func(ctx context.Context) error {
		b, err := c.client.GetDel(ctx, key).Bytes()
		raw = b
		return err
	})
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache: undecodable value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value as JSON at key. ttl <= 0 stores without expiry. It reports whether
// the write reached the backend; failures are logged and reflected in Healthy.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	b, err := json.Marshal(value)
	if err != nil {
		c.log.Error("cache: unencodable value", zap.String("key", key), zap.Error(err))
		return false
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.client.Set(ctx, key, b, ttl).Err()
	}) == nil
}

// Delete removes key. It reports whether the backend acknowledged the delete (a
// missing key counts as deleted).
func (c *Cache) Delete(ctx context.Context, key string) bool {
	return c.do(ctx, "del", func(ctx context.Context) error {
		return c.client.Del(ctx, key).Err()
	}) == nil
}

// GetOrSet returns the cached value at key, or computes it with fn, stores it with
// ttl and returns it. Only fn's error is ever returned; cache failures behave as a
// miss followed by a dropped write.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var v T
	if c.Get(ctx, key, &v) {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}

// Check pings the backend once and updates the health flag.
func (c *Cache) Check(ctx context.Context) bool {
	pctx := ctx
	if c.opts.OpTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, c.opts.OpTimeout)
		defer cancel()
	}
	err := c.client.Ping(pctx).Err()
	if err != nil {
		c.log.Warn("cache: health check failed", zap.Error(err))
	}
	c.setHealthy(err == nil)
	return err == nil
}

// Run pings the backend every HealthInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	t := time.NewTicker(c.opts.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// do runs fn with exponential backoff. redis.Nil is a result, not a failure, and is
// returned without retrying.
func (c *Cache) do(ctx context.Context, op string, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(uint64(c.opts.Attempts-1), retry.NewExponential(c.opts.RetryBase)) // #nosec G115 -- Attempts > 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		actx := ctx
		if c.opts.OpTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, c.opts.OpTimeout)
			defer cancel()
		}
		err := fn(actx)
		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		return retry.RetryableError(err)
	})
	switch {
	case err == nil:
		c.setHealthy(true)
	case errors.Is(err, redis.Nil):
		c.setHealthy(true)
	default:
		c.log.Warn("cache: operation failed", zap.String("op", op), zap.Error(err))
		if c.opts.OnFailure != nil {
			c.opts.OnFailure(op)
		}
		// a caller giving up says nothing about the backend
		if ctx.Err() == nil {
			c.setHealthy(false)
		}
	}
	return err
}

func (c *Cache) setHealthy(v bool) {
	if c.healthy.CompareAndSwap(!v, v) {
		if v {
			c.log.Info("cache: backend healthy")
		} else {
			c.log.Warn("cache: backend unhealthy, degrading to no caching")
		}
		if c.opts.OnHealthChange != nil {
			c.opts.OnHealthChange(v)
		}
	}
}
