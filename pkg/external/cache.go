package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/priorauth-engine/internal/domain"
)

// CacheClient wraps a Redis client with typed caching for external drug
// metadata lookups.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration

	identifyTTL     time.Duration
	approvalTTL     time.Duration
	formulationsTTL time.Duration
}

// NewCacheClient creates a new cache client.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:           client,
		defaultTTL:      config.DefaultTTL,
		identifyTTL:     config.IdentifyTTL,
		approvalTTL:     config.ApprovalTTL,
		formulationsTTL: config.FormulationsTTL,
	}, nil
}

// cachedIdentification wraps cached identification data with expiry metadata.
type cachedIdentification struct {
	Data      *domain.DrugIdentification `json:"data"`
	CachedAt  time.Time                  `json:"cached_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

type cachedApproval struct {
	Data      *domain.ApprovalInfo `json:"data"`
	CachedAt  time.Time            `json:"cached_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

type cachedFormulations struct {
	Data      []domain.Formulation `json:"data"`
	CachedAt  time.Time            `json:"cached_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// GetIdentification retrieves cached identification data for a drug name.
func (c *CacheClient) GetIdentification(ctx context.Context, drugName string) (*domain.DrugIdentification, bool, error) {
	key := c.identifyKey(drugName)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get identification cache: %w", err)
	}

	var cached cachedIdentification
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetIdentification caches identification data for a drug name.
func (c *CacheClient) SetIdentification(ctx context.Context, drugName string, data *domain.DrugIdentification) error {
	ttl := c.identifyTTL
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedIdentification{
		Data:      data,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal identification cache data: %w", err)
	}

	return c.redis.Set(ctx, c.identifyKey(drugName), jsonData, ttl).Err()
}

// GetApproval retrieves cached approval data for a (generic, indication) pair.
func (c *CacheClient) GetApproval(ctx context.Context, genericName, indication string) (*domain.ApprovalInfo, bool, error) {
	key := c.approvalKey(genericName, indication)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get approval cache: %w", err)
	}

	var cached cachedApproval
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetApproval caches approval data for a (generic, indication) pair.
func (c *CacheClient) SetApproval(ctx context.Context, genericName, indication string, data *domain.ApprovalInfo) error {
	ttl := c.approvalTTL
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedApproval{
		Data:      data,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal approval cache data: %w", err)
	}

	return c.redis.Set(ctx, c.approvalKey(genericName, indication), jsonData, ttl).Err()
}

// GetFormulations retrieves cached formulation data for a drug name.
func (c *CacheClient) GetFormulations(ctx context.Context, drugName string) ([]domain.Formulation, bool, error) {
	key := c.formulationsKey(drugName)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get formulations cache: %w", err)
	}

	var cached cachedFormulations
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetFormulations caches formulation data for a drug name.
func (c *CacheClient) SetFormulations(ctx context.Context, drugName string, data []domain.Formulation) error {
	ttl := c.formulationsTTL
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedFormulations{
		Data:      data,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal formulations cache data: %w", err)
	}

	return c.redis.Set(ctx, c.formulationsKey(drugName), jsonData, ttl).Err()
}

// InvalidateDrug removes all cached data for a drug name.
func (c *CacheClient) InvalidateDrug(ctx context.Context, drugName string) error {
	return c.redis.Del(ctx,
		c.identifyKey(drugName),
		c.formulationsKey(drugName),
	).Err()
}

// Ping checks if the Redis connection is alive.
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func (c *CacheClient) identifyKey(drugName string) string {
	return hashedKey("identify", domain.NormalizeName(drugName))
}

func (c *CacheClient) approvalKey(genericName, indication string) string {
	return hashedKey("approval", domain.NormalizeName(genericName)+":"+domain.NormalizeName(indication))
}

func (c *CacheClient) formulationsKey(drugName string) string {
	return hashedKey("formulations", domain.NormalizeName(drugName))
}

// hashedKey creates a fixed-length cache key from arbitrary input.
func hashedKey(prefix, data string) string {
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s:drug:%x", prefix, hash[:8])
}
