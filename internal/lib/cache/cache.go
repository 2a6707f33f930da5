// Package cache keeps hot program lookups and request counters in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/deppfellow/partners/internal/model"
)

const DefaultProgramTTL = 10 * time.Minute

// ProgramCache stores programs as JSON under both their id and slug.
type ProgramCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProgramCache(rdb *redis.Client, ttl time.Duration) *ProgramCache {
	if ttl <= 0 {
		ttl = DefaultProgramTTL
	}
	return &ProgramCache{rdb: rdb, ttl: ttl}
}

func programIDKey(id string) string     { return "program:id:" + id }
func programSlugKey(slug string) string { return "program:slug:" + slug }

// GetByID returns nil without error on a miss.
func (c *ProgramCache) GetByID(ctx context.Context, id string) (*model.Program, error) {
	return c.get(ctx, programIDKey(id))
}

// GetBySlug returns nil without error on a miss.
func (c *ProgramCache) GetBySlug(ctx context.Context, slug string) (*model.Program, error) {
	return c.get(ctx, programSlugKey(slug))
}

func (c *ProgramCache) get(ctx context.Context, key string) (*model.Program, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s from cache", key)
	}

	var p model.Program
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrapf(err, "failed to decode cached %s", key)
	}
	return &p, nil
}

func (c *ProgramCache) Set(ctx context.Context, p *model.Program) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to encode program for cache")
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, programIDKey(p.ID), raw, c.ttl)
	pipe.Set(ctx, programSlugKey(p.Slug), raw, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to cache program")
	}
	return nil
}

func (c *ProgramCache) Invalidate(ctx context.Context, p *model.Program) error {
	if err := c.rdb.Del(ctx, programIDKey(p.ID), programSlugKey(p.Slug)).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate cached program")
	}
	return nil
}

// FixedWindowLimiter counts hits per key in windows of a fixed length.
type FixedWindowLimiter struct {
	rdb    *redis.Client
	window time.Duration
}

func NewFixedWindowLimiter(rdb *redis.Client, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{rdb: rdb, window: window}
}

// Allow increments the counter for key in the current window and reports
// whether it is still within limit, along with the remaining allowance.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int) (bool, int, error) {
	windowStart := time.Now().Truncate(l.window).Unix()
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "failed to increment rate limit counter")
	}

	count := int(incr.Val())
	return count <= limit, max(limit-count, 0), nil
}
