// Package redisstore implements the blob store on Redis, for deployments
// where the gateway runs replicated and profile state must be shared.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atlasgg/storefront/storage"
)

// Store implements storage.BlobStore using Redis string values.
type Store struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// New creates a new [Store] instance.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given blob key.
func (s *Store) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Get implements storage.BlobStore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob from Redis: %w", err)
	}
	return value, nil
}

// Set implements storage.BlobStore.Set. Blobs have no TTL: session and cart
// state lives until explicitly cleared.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set blob in Redis: %w", err)
	}
	return nil
}

// Delete implements storage.BlobStore.Delete.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete blob from Redis: %w", err)
	}
	return nil
}
