package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ceramica-booking/internal/logging"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
)

// Notice is one toast for the customer.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Notifier is the toast channel of a session. Drain returns pending notices
// in order and forgets them.
type Notifier interface {
	Push(ctx context.Context, sessionID string, n Notice) error
	Drain(ctx context.Context, sessionID string) ([]Notice, error)
}

type RedisNotices struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisNotices(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisNotices {
	return &RedisNotices{rdb: rdb, ttl: ttl, logger: logging.OrNop(logger)}
}

func noticesKey(id string) string { return "wizard:notices:" + id }

func (r *RedisNotices) Push(ctx context.Context, sessionID string, n Notice) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("wizard: encode notice: %w", err)
	}
	key := noticesKey(sessionID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("wizard: push notice: %w", err)
	}
	return nil
}

func (r *RedisNotices) Drain(ctx context.Context, sessionID string) ([]Notice, error) {
	key := noticesKey(sessionID)
	var items *redis.StringSliceCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		items = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wizard: drain notices: %w", err)
	}
	out := make([]Notice, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var n Notice
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			r.logger.Warn("dropping undecodable notice", zap.String("session", sessionID), zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

type MemoryNotices struct {
	mu      sync.Mutex
	pending map[string][]Notice
}

func NewMemoryNotices() *MemoryNotices {
	return &MemoryNotices{pending: make(map[string][]Notice)}
}

func (m *MemoryNotices) Push(_ context.Context, sessionID string, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[sessionID] = append(m.pending[sessionID], n)
	return nil
}

func (m *MemoryNotices) Drain(_ context.Context, sessionID string) ([]Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending[sessionID]
	delete(m.pending, sessionID)
	if out == nil {
		out = []Notice{}
	}
	return out, nil
}
