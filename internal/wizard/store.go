package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ceramica-booking/internal/booking"
)

var ErrSessionNotFound = errors.New("wizard session not found or expired")

// State is what survives between requests of one wizard session. Slots and
// valid dates are derived and never stored.
type State struct {
	ID        string                  `json:"id"`
	Step      booking.Step            `json:"step"`
	Draft     booking.Draft           `json:"draft"`
	Classes   []booking.ClassSchedule `json:"classes"`
	Banner    string                  `json:"banner,omitempty"`
	Advisory  string                  `json:"advisory,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Store persists wizard sessions.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, st *State) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each session as a JSON value that expires after ttl of
// inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "wizard:session:" + id }

func (s *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: load session: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("wizard: encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(st.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("wizard: delete session: %w", err)
	}
	return nil
}

// MemoryStore is the single-process Store used in development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{sessions: make(map[string]memoryEntry), ttl: ttl, now: now}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || (s.ttl > 0 && !s.now().Before(e.expires)) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	var st State
	if err := json.Unmarshal(e.raw, &st); err != nil {
		return nil, fmt.Errorf("wizard: decode session: %w", err)
	}
	return &st, nil
}

func (s *MemoryStore) Save(_ context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("wizard: encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[st.ID] = memoryEntry{raw: raw, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
