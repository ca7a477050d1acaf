// Package session 持久化每个客户端的登录信息（只有显示名）
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"career-compass/internal/constants"
	"career-compass/internal/storage"
	"career-compass/internal/types"
)

// Session 已登录用户
type Session struct {
	Name string `json:"name"`
}

// NewSession 校验并创建会话，名字去掉首尾空白后不能为空
func NewSession(name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, types.NewValidationError("name", "请输入名字")
	}
	return Session{Name: name}, nil
}

// Store 会话存储
type Store interface {
	// Load 读取会话，不存在时 ok 为 false
	Load(ctx context.Context, clientID string) (s Session, ok bool, err error)
	Save(ctx context.Context, clientID string, s Session) error
	// Clear 删除会话，不存在时静默成功
	Clear(ctx context.Context, clientID string) error
}

// Key 返回客户端会话在 Redis 中的键
func Key(clientID string) string {
	return fmt.Sprintf(constants.KeySessionUser, clientID)
}

// KV RedisStore 依赖的键值操作，*storage.Redis 实现了它
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, key string) error
}

var _ KV = (*storage.Redis)(nil)

// RedisStore 把会话存成 JSON 字符串，不设置过期时间
type RedisStore struct {
	kv KV
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(kv KV) *RedisStore {
	return &RedisStore{kv: kv}
}

// Load 实现 Store 接口
func (r *RedisStore) Load(ctx context.Context, clientID string) (Session, bool, error) {
	raw, err := r.kv.Get(ctx, Key(clientID))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("读取会话失败: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// 损坏的记录当作未登录
		return Session{}, false, nil
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Session{}, false, nil
	}
	return s, true, nil
}

// Save 实现 Store 接口
func (r *RedisStore) Save(ctx context.Context, clientID string, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	if err := r.kv.Set(ctx, Key(clientID), string(data), 0); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// Clear 实现 Store 接口
func (r *RedisStore) Clear(ctx context.Context, clientID string) error {
	if err := r.kv.Del(ctx, Key(clientID)); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// MemoryStore 进程内存储，Redis 不可用时使用，重启后丢失
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore 创建内存会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Load 实现 Store 接口
func (m *MemoryStore) Load(_ context.Context, clientID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[clientID]
	return s, ok, nil
}

// Save 实现 Store 接口
func (m *MemoryStore) Save(_ context.Context, clientID string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[clientID] = s
	return nil
}

// Clear 实现 Store 接口
func (m *MemoryStore) Clear(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, clientID)
	return nil
}
