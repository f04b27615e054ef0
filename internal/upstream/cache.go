package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoutCache keeps scout results until their creature expires.
type ScoutCache interface {
	Get(ctx context.Context, encounterID string) (ScoutResult, bool, error)
	Set(ctx context.Context, result ScoutResult, ttl time.Duration) error
}

type memoryEntry struct {
	result  ScoutResult
	expires time.Time
}

// MemoryCache is the fallback used when Redis is disabled.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, encounterID string) (ScoutResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[encounterID]
	if !ok {
		return ScoutResult{}, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, encounterID)
		return ScoutResult{}, false, nil
	}
	return e.result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, result ScoutResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
		}
	}
	c.entries[result.EncounterID] = memoryEntry{result: result, expires: now.Add(ttl)}
	return nil
}

// RedisCache stores results as JSON under "<namespace>scout:<encounter id>".
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisCache(rdb redis.UniversalClient, namespace string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: namespace + "scout:"}
}

func (c *RedisCache) Get(ctx context.Context, encounterID string) (ScoutResult, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+encounterID).Bytes()
	if err == redis.Nil {
		return ScoutResult{}, false, nil
	}
	if err != nil {
		return ScoutResult{}, false, fmt.Errorf("failed to read scout result: %w", err)
	}

	var result ScoutResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ScoutResult{}, false, fmt.Errorf("failed to decode scout result: %w", err)
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, result ScoutResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode scout result: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+result.EncounterID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store scout result: %w", err)
	}
	return nil
}
