package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate is a set of expiring flags. Acquire succeeds only when the flag is not
// already raised; the flag drops on Release or once ttl passes.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Held(ctx context.Context, key string) (bool, error)
}

type RedisGate struct {
	rdb *redis.Client
}

func NewRedisGate(rdb *redis.Client) *RedisGate {
	return &RedisGate{rdb: rdb}
}

func (g *RedisGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("wizard: acquire %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGate) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("wizard: release %s: %w", key, err)
	}
	return nil
}

func (g *RedisGate) Held(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("wizard: check %s: %w", key, err)
	}
	return n > 0, nil
}

type MemoryGate struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryGate(now func() time.Time) *MemoryGate {
	if now == nil {
		now = time.Now
	}
	return &MemoryGate{until: make(map[string]time.Time), now: now}
}

func (g *MemoryGate) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.until[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGate) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, key)
	return nil
}

func (g *MemoryGate) Held(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.until[key]
	return ok && g.now().Before(exp), nil
}
