package redis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.EntitlementCache = (*EntitlementCache)(nil)

// EntitlementCache drops the per-user live-data keys the read side maintains,
// plus the global aggregate, so reads right after a fulfillment see the new
// entitlement instead of a stale cache entry.
type EntitlementCache struct {
	cache RedisClient
	log   *zerolog.Logger
}

func NewEntitlementCache(cache RedisClient, logger *zerolog.Logger) *EntitlementCache {
	return &EntitlementCache{cache: cache, log: logger}
}

func (c *EntitlementCache) InvalidateUser(ctx context.Context, provisioningID string) {
	keys := []string{
		fmt.Sprintf("live_data_%s", provisioningID),
		fmt.Sprintf("nodes_%s", provisioningID),
		"stats:aggregate",
	}
	if err := c.cache.Del(ctx, keys...); err != nil {
		// Stale reads self-heal on TTL; invalidation failure is not fatal.
		c.log.Warn().Err(err).Str("provisioning_id", provisioningID).Msg("cache invalidation failed")
	}
}
