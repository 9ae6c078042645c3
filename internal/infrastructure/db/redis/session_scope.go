package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces durable session records.
// Key format: session:<opaque session key>
const keyPrefix = "session:"

// SessionScope is the durable session scope backed by Redis. Expiry is
// delegated to Redis TTLs, so an expired record simply stops existing; the
// store's own expiry rules still apply to records restored from older
// deployments.
type SessionScope struct {
	client *redis.Client
}

// NewSessionScope creates a SessionScope wrapping the given Redis client.
func NewSessionScope(client *redis.Client) *SessionScope {
	return &SessionScope{client: client}
}

// Get returns the stored record, or (nil, nil) when the key is absent.
func (s *SessionScope) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session scope get: %w", err)
	}
	return raw, nil
}

// Set stores the record with the given TTL.
func (s *SessionScope) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("session scope set: %w", err)
	}
	return nil
}

// Delete removes the record. Deleting an absent key is not an error.
func (s *SessionScope) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("session scope delete: %w", err)
	}
	return nil
}

func (s *SessionScope) key(key string) string {
	return keyPrefix + key
}
