// Package session persists the backend cart identifier bound to a browsing
// client. The handle is created once, on the first cart mutation, and is
// stable for the rest of the session; it is only ever created or read.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists one cart handle per visitor. Get returns "" with a nil
// error when no handle has been bound yet. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, cartID string) error
}

// MemoryStore holds the handle in memory. It backs tests and single-process
// deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	cartID string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the bound cart id, or "" when absent.
func (s *MemoryStore) Get(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartID, nil
}

// Set binds the cart id.
func (s *MemoryStore) Set(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartID = cartID
	return nil
}

// RedisStore keeps the handle in Redis, keyed per visitor, so any storefront
// instance behind a load balancer resolves the same cart.
type RedisStore struct {
	client  *redis.Client
	visitor string
	ttl     time.Duration
}

// NewRedisStore binds a store to one visitor id. The TTL bounds the browsing
// session; every Set refreshes it.
func NewRedisStore(client *redis.Client, visitorID string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, visitor: visitorID, ttl: ttl}
}

func (s *RedisStore) key() string { return "cart:" + s.visitor }

// Get returns the bound cart id, or "" when the key is missing or expired.
func (s *RedisStore) Get(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set binds the cart id and refreshes the session TTL.
func (s *RedisStore) Set(ctx context.Context, cartID string) error {
	return s.client.Set(ctx, s.key(), cartID, s.ttl).Err()
}
