package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// RedisCache is a ContractCache backed by Redis, for deployments with more
// than one service instance. Each committed version is stored under its own
// key and a pointer key tracks the current version, so readers can never
// observe a torn write. Cache failures degrade to store reads; they are
// logged and never surfaced.
type RedisCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisCache creates a cache on the given client.
func NewRedisCache(client *redis.Client, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, log: log.With().Str("component", "contract_cache").Logger()}
}

func versionKey(id string, version int) string { return fmt.Sprintf("contract:%s:v%d", id, version) }
func currentKey(id string) string              { return fmt.Sprintf("contract:%s:current", id) }

func (c *RedisCache) Get(ctx context.Context, id string) (*domain.Contract, bool) {
	version, err := c.client.Get(ctx, currentKey(id)).Int()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("contract_id", id).Msg("cache read failed")
		}
		return nil, false
	}

	data, err := c.client.Get(ctx, versionKey(id, version)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("contract_id", id).Msg("cache read failed")
		}
		return nil, false
	}

	var contract domain.Contract
	if err := json.Unmarshal(data, &contract); err != nil {
		c.log.Warn().Err(err).Str("contract_id", id).Msg("cache entry corrupt; dropping")
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &contract, true
}

func (c *RedisCache) Put(ctx context.Context, contract *domain.Contract) {
	data, err := json.Marshal(contract)
	if err != nil {
		c.log.Warn().Err(err).Str("contract_id", contract.ID).Msg("cache marshal failed")
		return
	}

	if err := c.client.Set(ctx, versionKey(contract.ID, contract.Version), data, 0).Err(); err != nil {
		c.log.Warn().Err(err).Str("contract_id", contract.ID).Msg("cache write failed")
		return
	}

	// Advance the pointer only; an older version key left behind is harmless
	// and gets dropped on the next Invalidate.
	current, err := c.client.Get(ctx, currentKey(contract.ID)).Int()
	if err == nil && current > contract.Version {
		return
	}
	if err := c.client.Set(ctx, currentKey(contract.ID), contract.Version, 0).Err(); err != nil {
		c.log.Warn().Err(err).Str("contract_id", contract.ID).Msg("cache pointer write failed")
		return
	}
	if current > 0 && current < contract.Version {
		c.client.Del(ctx, versionKey(contract.ID, current))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	version, err := c.client.Get(ctx, currentKey(id)).Int()
	if err == nil {
		c.client.Del(ctx, versionKey(id, version))
	}
	if err := c.client.Del(ctx, currentKey(id)).Err(); err != nil {
		c.log.Warn().Err(err).Str("contract_id", id).Msg("cache invalidate failed")
	}
}
