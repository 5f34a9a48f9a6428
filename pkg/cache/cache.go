package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs. The cache is a read-through accelerator only; entries may be
// stale for up to their TTL and the registry stays the source of truth.
const (
	TTLSchema       = 10 * time.Minute // individual schema (immutable content)
	TTLActiveSchema = 1 * time.Minute  // active pointer (changes on activation)
	TTLSchemaList   = 2 * time.Minute  // full schema listing
	TTLDefault      = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixSchema       = "schema:"
	PrefixActiveSchema = "schema:active"
	PrefixSchemaList   = "schema:list"
)

// Service Redis cache service interface
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetSchema(ctx context.Context, formVersionID string) ([]byte, error)
	SetSchema(ctx context.Context, formVersionID string, data interface{}) error

	GetActiveSchema(ctx context.Context) ([]byte, error)
	SetActiveSchema(ctx context.Context, data interface{}) error

	GetSchemaList(ctx context.Context) ([]byte, error)
	SetSchemaList(ctx context.Context, data interface{}) error

	// InvalidateSchemas drops the active pointer, the listing, and the given
	// schema entries. Called on every schema create/activate/deprecate.
	InvalidateSchemas(ctx context.Context, formVersionIDs ...string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis-backed cache. A nil client degrades every operation to a
// no-op so the service keeps working without Redis.
type redisCache struct {
	client *redis.Client
}

// NewService creates a new cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis not available")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) schemaKey(formVersionID string) string {
	return PrefixSchema + formVersionID
}

func (c *redisCache) GetSchema(ctx context.Context, formVersionID string) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis not available")
	}
	return c.client.Get(ctx, c.schemaKey(formVersionID)).Bytes()
}

func (c *redisCache) SetSchema(ctx context.Context, formVersionID string, data interface{}) error {
	if c.client == nil {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.schemaKey(formVersionID), jsonData, TTLSchema).Err()
}

func (c *redisCache) GetActiveSchema(ctx context.Context) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis not available")
	}
	return c.client.Get(ctx, PrefixActiveSchema).Bytes()
}

func (c *redisCache) SetActiveSchema(ctx context.Context, data interface{}) error {
	if c.client == nil {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, PrefixActiveSchema, jsonData, TTLActiveSchema).Err()
}

func (c *redisCache) GetSchemaList(ctx context.Context) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis not available")
	}
	return c.client.Get(ctx, PrefixSchemaList).Bytes()
}

func (c *redisCache) SetSchemaList(ctx context.Context, data interface{}) error {
	if c.client == nil {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, PrefixSchemaList, jsonData, TTLSchemaList).Err()
}

func (c *redisCache) InvalidateSchemas(ctx context.Context, formVersionIDs ...string) error {
	if c.client == nil {
		return nil
	}
	keys := []string{PrefixActiveSchema, PrefixSchemaList}
	for _, id := range formVersionIDs {
		keys = append(keys, c.schemaKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
