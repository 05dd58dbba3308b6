package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/repository"
	"vpn-subscription-billing/internal/infra/metrics"
	red "vpn-subscription-billing/internal/infra/redis"
)

var _ repository.TariffRepository = (*tariffRepoCacheDecorator)(nil)

// The tariff catalog changes rarely and is read on every charge, so reads go
// through redis with a TTL. The back office invalidates on writes; this core
// never writes tariffs.
type tariffRepoCacheDecorator struct {
	inner repository.TariffRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewTariffRepoCacheDecorator(inner repository.TariffRepository, cache red.RedisClient, ttl time.Duration) repository.TariffRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tariffRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *tariffRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	key := fmt.Sprintf("tariff:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.Tariff
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncCacheRequest("tariff", "hit")
			return &t, nil
		}
	} else if err != redis.Nil {
		// Redis being down degrades to DB reads; nothing to do here.
	}

	metrics.IncCacheRequest("tariff", "miss")
	t, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(t); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return t, nil
}

func (d *tariffRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	const key = "tariffs:all"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var ts []*model.Tariff
		if json.Unmarshal([]byte(val), &ts) == nil {
			metrics.IncCacheRequest("tariff_list", "hit")
			return ts, nil
		}
	}

	metrics.IncCacheRequest("tariff_list", "miss")
	ts, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		if bytes, err := json.Marshal(ts); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return ts, nil
}
