// Package ratelimit admits at most one event per key per interval.
//
// Memory works for a single process. Redis shares the limit across
// instances using SET NX PX, so the first writer in each window wins.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/rueidis"
)

// Memory is an in-process limiter.
type Memory struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory() *Memory {
	return &Memory{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether key may proceed and, if so, starts its interval.
func (m *Memory) Allow(_ context.Context, key string, interval time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if prev, ok := m.last[key]; ok && now.Sub(prev) < interval {
		return false, nil
	}
	m.last[key] = now

	// Opportunistic sweep keeps the map bounded by active keys.
	if len(m.last) > 4096 {
		for k, t := range m.last {
			if now.Sub(t) >= interval {
				delete(m.last, k)
			}
		}
	}
	return true, nil
}

// Release forgets key so its next event is admitted.
func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.last, key)
	m.mu.Unlock()
	return nil
}

// Redis is a limiter shared through a Redis server.
type Redis struct {
	client rueidis.Client
	prefix string
}

// NewRedis creates a limiter on an existing client. Keys are namespaced
// under prefix.
func NewRedis(client rueidis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to addr and returns a limiter that owns the client.
func Dial(addr, prefix string) (*Redis, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedis(client, prefix), nil
}

// Allow reports whether key may proceed and, if so, starts its interval.
func (r *Redis) Allow(ctx context.Context, key string, interval time.Duration) (bool, error) {
	cmd := r.client.B().Set().
		Key(r.prefix + key).
		Value("1").
		Nx().
		PxMilliseconds(max(interval.Milliseconds(), 1)).
		Build()

	err := r.client.Do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return true, nil
}

// Release deletes key so its next event is admitted.
func (r *Redis) Release(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(r.prefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis client.
func (r *Redis) Close() {
	r.client.Close()
}
