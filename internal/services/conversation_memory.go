package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
)

const (
	DefaultMemoryTurns = 10
	DefaultMemoryTTL   = 24 * time.Hour
)

// ConversationMemory keeps the recent turns of a WhatsApp conversation per sender.
type ConversationMemory interface {
	Load(ctx context.Context, sender string) ([]gemini.Turn, error)
	Append(ctx context.Context, sender string, turns ...gemini.Turn) error
	Clear(ctx context.Context, sender string) error
}

type storedTurn struct {
	Role string `json:"r"`
	Text string `json:"t"`
}

func memoryKey(sender string) string {
	sum := sha256.Sum256([]byte(sender))
	return "wa:conv:" + hex.EncodeToString(sum[:12])
}

// ---------- redis ----------

type redisMemory struct {
	rdb      *goredis.Client
	maxTurns int
	ttl      time.Duration
}

func NewRedisConversationMemory(rdb *goredis.Client, maxTurns int, ttl time.Duration) ConversationMemory {
	if maxTurns <= 0 {
		maxTurns = DefaultMemoryTurns
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &redisMemory{rdb: rdb, maxTurns: maxTurns, ttl: ttl}
}

func (m *redisMemory) Load(ctx context.Context, sender string) ([]gemini.Turn, error) {
	raw, err := m.rdb.LRange(ctx, memoryKey(sender), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	out := make([]gemini.Turn, 0, len(raw))
	for _, r := range raw {
		var st storedTurn
		if json.Unmarshal([]byte(r), &st) != nil {
			continue
		}
		out = append(out, gemini.Turn{Role: st.Role, Text: st.Text})
	}
	return out, nil
}

func (m *redisMemory) Append(ctx context.Context, sender string, turns ...gemini.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key := memoryKey(sender)
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(storedTurn{Role: t.Role, Text: t.Text})
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}
	pipe := m.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-m.maxTurns), -1)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append conversation: %w", err)
	}
	return nil
}

func (m *redisMemory) Clear(ctx context.Context, sender string) error {
	return m.rdb.Del(ctx, memoryKey(sender)).Err()
}

// ---------- in-process ----------

type lruEntry struct {
	turns     []gemini.Turn
	expiresAt time.Time
}

type lruMemory struct {
	mu       sync.Mutex
	cache    *lru.Cache
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewLRUConversationMemory keeps at most size conversations in process.
func NewLRUConversationMemory(size, maxTurns int, ttl time.Duration) (ConversationMemory, error) {
	if size <= 0 {
		size = 1024
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMemoryTurns
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruMemory{cache: c, maxTurns: maxTurns, ttl: ttl, now: time.Now}, nil
}

func (m *lruMemory) Load(ctx context.Context, sender string) ([]gemini.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(sender)
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, nil
	}
	e := v.(*lruEntry)
	if m.now().After(e.expiresAt) {
		m.cache.Remove(key)
		return nil, nil
	}
	return append([]gemini.Turn(nil), e.turns...), nil
}

func (m *lruMemory) Append(ctx context.Context, sender string, turns ...gemini.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(sender)
	var existing []gemini.Turn
	if v, ok := m.cache.Get(key); ok {
		if e := v.(*lruEntry); !m.now().After(e.expiresAt) {
			existing = e.turns
		}
	}
	all := append(append([]gemini.Turn(nil), existing...), turns...)
	if len(all) > m.maxTurns {
		all = all[len(all)-m.maxTurns:]
	}
	m.cache.Add(key, &lruEntry{turns: all, expiresAt: m.now().Add(m.ttl)})
	return nil
}

func (m *lruMemory) Clear(ctx context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(memoryKey(sender))
	return nil
}
