// internal/cache/coupon_cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"coupon-service/internal/domain/coupon"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "coupon:code:"

// CouponCache is a short-TTL read-through cache for coupon-by-code lookups.
// It only ever serves the read-only validation path; stale used_count here is
// harmless because the ledger re-checks limits at write time. Cache failures
// degrade to database reads, never to request failures.
type CouponCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCouponCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CouponCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CouponCache{client: client, ttl: ttl, logger: logger}
}

func (c *CouponCache) Get(ctx context.Context, code string) (*coupon.Coupon, bool) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("coupon cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var cp coupon.Coupon
	if err := json.Unmarshal(data, &cp); err != nil {
		c.logger.Warn("coupon cache entry corrupt, dropping", zap.String("code", code), zap.Error(err))
		_ = c.client.Del(ctx, keyPrefix+code).Err()
		return nil, false
	}

	return &cp, true
}

func (c *CouponCache) Set(ctx context.Context, cp *coupon.Coupon) {
	data, err := json.Marshal(cp)
	if err != nil {
		c.logger.Warn("coupon cache marshal failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, keyPrefix+cp.Code, data, c.ttl).Err(); err != nil {
		c.logger.Warn("coupon cache write failed", zap.Error(err))
	}
}

func (c *CouponCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		c.logger.Warn("coupon cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}
