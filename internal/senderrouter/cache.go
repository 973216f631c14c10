package senderrouter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/whatsflow/internal/queue/redisclient"
	"github.com/redis/go-redis/v9"
)

// CachedSenders wraps a SendersRepo with a Redis-backed memoization layer,
// since sender/code resolution is read-heavy and changes rarely (an
// operator toggling a sender active/inactive, at most a few times a day).
type CachedSenders struct {
	inner SendersRepo
	redis *redisclient.Client
	ttl   time.Duration
}

func NewCachedSenders(inner SendersRepo, rc *redisclient.Client, ttl time.Duration) *CachedSenders {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedSenders{inner: inner, redis: rc, ttl: ttl}
}

func senderCacheKey(companyID int64, senderCode string) string {
	return fmt.Sprintf("whatsflow:sender:%d:%s", companyID, senderCode)
}

// ActiveIDByCode checks Redis first; a cache miss or a disconnected Redis
// falls straight through to the underlying repo, so a Redis outage degrades
// to uncached lookups rather than failing sends outright.
func (c *CachedSenders) ActiveIDByCode(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	if c.redis != nil {
		if v, err := c.redis.Raw().Get(ctx, senderCacheKey(companyID, senderCode)).Result(); err == nil {
			if v == "" {
				return 0, false, nil
			}
			id, perr := strconv.ParseInt(v, 10, 64)
			if perr == nil {
				return id, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// Redis reachable but errored on something other than a miss;
			// still fall through to the source of truth below.
			_ = err
		}
	}

	id, ok, err := c.inner.ActiveIDByCode(ctx, companyID, senderCode)
	if err != nil {
		return 0, false, err
	}

	if c.redis != nil {
		val := ""
		if ok {
			val = strconv.FormatInt(id, 10)
		}
		_ = c.redis.Raw().Set(ctx, senderCacheKey(companyID, senderCode), val, c.ttl).Err()
	}

	return id, ok, nil
}
