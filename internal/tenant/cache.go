package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "tenant:v1:key:"

// CachedRepository serves FindByKey from Redis, falling back to the wrapped
// repository on a miss. Redis failures degrade to the wrapped repository.
// Misses are not cached, so a newly created app is visible immediately.
type CachedRepository struct {
	Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository wraps inner with a read-through cache.
func NewCachedRepository(inner Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{Repository: inner, cache: cache, ttl: ttl, logger: logger}
}

// FindByKey resolves a publishable key through the cache.
func (r *CachedRepository) FindByKey(ctx context.Context, key string) (App, error) {
	cacheKey := cachePrefix + keyDigest(key)

	cached, err := r.cache.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var app App
		if jsonErr := json.Unmarshal(cached, &app); jsonErr == nil {
			return app, nil
		}
		r.logger.Warn("discarding undecodable tenant cache entry")
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("tenant cache lookup failed", slog.Any("error", err))
	}

	app, err := r.Repository.FindByKey(ctx, key)
	if err != nil {
		return App{}, err
	}
	if payload, err := json.Marshal(app); err == nil {
		if err := r.cache.Set(ctx, cacheKey, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("tenant cache fill failed", slog.Any("error", err))
		}
	}
	return app, nil
}

// keyDigest keeps raw keys out of the cache keyspace.
func keyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
