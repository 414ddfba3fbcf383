// Package redis provides a Redis-backed token cache so multiple server
// instances can share bearer-token lookups.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coopfeathy/authlib-django/cache"
	"github.com/coopfeathy/authlib-django/errors"
)

// TokenStore implements cache.TokenStore on a Redis client. Entries are
// stored as JSON under a hashed key with a TTL matching the token's expiry.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a new [TokenStore] instance. prefix namespaces the
// keys when the Redis instance is shared.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (r *TokenStore) redisKey(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenValue))
}

// Set stores a token entry with a TTL matching its expiry.
func (r *TokenStore) Set(ctx context.Context, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}
	if err := r.client.Set(ctx, r.redisKey(entry.TokenValue), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry.
func (r *TokenStore) Get(ctx context.Context, tokenValue string) (*cache.TokenEntry, error) {
	data, err := r.client.Get(ctx, r.redisKey(tokenValue)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}
	var entry cache.TokenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	entry.TokenValue = tokenValue
	return &entry, nil
}

// Delete removes a token entry.
func (r *TokenStore) Delete(ctx context.Context, tokenValue string) error {
	return r.client.Del(ctx, r.redisKey(tokenValue)).Err()
}

// DeleteExpired is a no-op: Redis evicts entries through their TTL.
func (r *TokenStore) DeleteExpired(_ context.Context) error {
	return nil
}

// Clear removes every token entry under the store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan token keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete token keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Count returns the number of cached tokens under the store's prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	pattern := fmt.Sprintf("%s:token:*", r.prefix)
	var count int
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Warn().Err(err).Msg("failed to scan token keys")
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

// Close releases the underlying client connection.
func (r *TokenStore) Close() error {
	return r.client.Close()
}
