package chat

import (
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Memory 聊天记录存储接口
type Memory interface {
	// GetHistory 获取会话的聊天记录，会话不存在时返回空切片
	GetHistory(sessionID string) ([]*schema.Message, error)

	// AddMessage 追加一条消息
	AddMessage(sessionID string, message *schema.Message) error

	// ClearHistory 清除会话记录，会话不存在时静默成功
	ClearHistory(sessionID string) error
}

// InMemoryMemory 进程内的 Memory 实现，不做持久化
type InMemoryMemory struct {
	mu        sync.RWMutex
	histories map[string][]*schema.Message
}

// NewInMemoryMemory 创建内存聊天记录
func NewInMemoryMemory() *InMemoryMemory {
	return &InMemoryMemory{
		histories: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 Memory 接口，返回副本
func (m *InMemoryMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.histories[sessionID]
	if !ok {
		return []*schema.Message{}, nil
	}
	// 消息追加后不再修改，浅拷贝即可
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 Memory 接口
func (m *InMemoryMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[sessionID] = append(m.histories[sessionID], message)
	return nil
}

// ClearHistory 实现 Memory 接口
func (m *InMemoryMemory) ClearHistory(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, sessionID)
	return nil
}
