package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"career-compass/internal/constants"
	"career-compass/internal/logger"
	"career-compass/internal/tracing"
	"career-compass/internal/types"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// Sender 把一条用户消息连同上下文发给聊天服务
type Sender interface {
	Chat(ctx context.Context, message string, chatCtx types.ChatContext) (string, error)
}

// ContextSource 在发送时提供当前的结果页上下文
type ContextSource func() types.ChatContext

// Turn 对外展示的一条聊天记录
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pendingTurn struct {
	text    string
	chatCtx types.ChatContext
	done    chan struct{}
}

// Option 会话选项
type Option func(*Session)

// WithMemory 替换聊天记录存储
func WithMemory(m Memory) Option {
	return func(s *Session) {
		if m != nil {
			s.memory = m
		}
	}
}

// WithQueueSize 设置最多可排队的消息数
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithRequestTimeout 设置单次聊天请求的超时
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Session 一个结果页对应的聊天会话。
// 用户消息立即写入记录，由单个后台协程依次发送，同一时间最多一个请求在途。
type Session struct {
	id      string
	sender  Sender
	source  ContextSource
	memory  Memory
	timeout time.Duration
	logger  zerolog.Logger

	queueSize int
	queue     chan pendingTurn

	mu      sync.Mutex
	pending int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession 创建会话，写入问候语并启动发送协程
func NewSession(id string, sender Sender, source ContextSource, opts ...Option) *Session {
	s := &Session{
		id:        id,
		sender:    sender,
		source:    source,
		memory:    NewInMemoryMemory(),
		timeout:   60 * time.Second,
		queueSize: 16,
		logger:    logger.Component("chat").With().Str("chat_session", id).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = func() types.ChatContext { return types.ChatContext{} }
	}
	s.queue = make(chan pendingTurn, s.queueSize)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	_ = s.memory.ClearHistory(id)
	if err := s.memory.AddMessage(id, schema.AssistantMessage(constants.ChatGreeting, nil)); err != nil {
		s.logger.Error().Err(err).Msg("写入问候语失败")
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// ID 会话标识
func (s *Session) ID() string {
	return s.id
}

// Send 追加用户消息并排队发送，返回的 channel 在该条消息得到回复（或兜底文案）后关闭
func (s *Session) Send(text string) (<-chan struct{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, types.NewValidationError("message", "消息不能为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrChatClosed
	}
	// 只有 Send 在持锁时入队，这里检查过长度后入队不会阻塞
	if len(s.queue) >= s.queueSize {
		return nil, types.ErrChatQueueFull
	}
	if err := s.memory.AddMessage(s.id, schema.UserMessage(text)); err != nil {
		return nil, err
	}

	t := pendingTurn{text: text, chatCtx: s.source(), done: make(chan struct{})}
	s.pending++
	s.queue <- t
	return t.done, nil
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.queue:
			s.process(t)
		}
	}
}

func (s *Session) process(t pendingTurn) {
	defer close(t.done)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	reply, err := s.sender.Chat(ctx, t.text, t.chatCtx)
	cancel()

	content := strings.TrimSpace(reply)
	switch {
	case err != nil && errors.Is(err, types.ErrNetwork):
		content = constants.ChatNetworkErrorMessage
	case err != nil || content == "":
		content = constants.ChatUnavailableMessage
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("message", tracing.SafeChatContent(t.text)).
			Msg("聊天请求失败，使用兜底回复")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.closed {
		s.logger.Debug().Msg("会话已关闭，丢弃回复")
		return
	}
	if err := s.memory.AddMessage(s.id, schema.AssistantMessage(content, nil)); err != nil {
		s.logger.Error().Err(err).Msg("写入助手回复失败")
	}
}

// Responding 是否还有消息在等待回复
func (s *Session) Responding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Transcript 返回完整聊天记录
func (s *Session) Transcript() []Turn {
	history, err := s.memory.GetHistory(s.id)
	if err != nil {
		s.logger.Error().Err(err).Msg("读取聊天记录失败")
		return []Turn{}
	}
	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{Role: string(msg.Role), Content: msg.Content})
	}
	return turns
}

// Close 停止发送协程并清除记录，之后到达的回复被丢弃
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	// 未处理的消息也要释放等待方
	for {
		select {
		case t := <-s.queue:
			s.mu.Lock()
			s.pending--
			s.mu.Unlock()
			close(t.done)
		default:
			_ = s.memory.ClearHistory(s.id)
			return
		}
	}
}
