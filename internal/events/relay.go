package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"career-compass/internal/logger"
	"career-compass/internal/storage"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollingInterval = 5 * time.Second // 重试队列的检查间隔
	defaultQueueSize       = 256
	defaultMaxAttempts     = 3
	defaultPublishTimeout  = 5 * time.Second
)

// Publisher 接收事件，发布失败不影响调用方
type Publisher interface {
	Publish(ctx context.Context, ev AssessmentCompleted) bool
}

type message struct {
	event    AssessmentCompleted
	attempts int
	link     trace.SpanContext // 触发事件的请求
}

// Option Relay 选项
type Option func(*Relay)

// WithPollingInterval 设置重试间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithQueueSize 设置内存队列长度，队列满时新事件被丢弃
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithMaxAttempts 设置单个事件最多发布几次
func WithMaxAttempts(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithPublishTimeout 设置单次发布等待 broker 确认的时间
func WithPublishTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

// Relay 进程内的发件箱：Publish 只入队，由后台协程发布到消息队列，失败的事件定期重试。
// publisher 为 nil 时所有事件直接丢弃。
type Relay struct {
	publisher       storage.MessageQueue
	exchange        string
	routingKey      string
	pollingInterval time.Duration
	queueSize       int
	maxAttempts     int
	publishTimeout  time.Duration

	queue   chan message
	pending []message // 等待重试，只由后台协程访问

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	tracer   trace.Tracer
	logger   zerolog.Logger
}

var _ Publisher = (*Relay)(nil)

// NewRelay 创建事件中继
func NewRelay(publisher storage.MessageQueue, exchange, routingKey string, opts ...Option) *Relay {
	r := &Relay{
		publisher:       publisher,
		exchange:        exchange,
		routingKey:      routingKey,
		pollingInterval: defaultPollingInterval,
		queueSize:       defaultQueueSize,
		maxAttempts:     defaultMaxAttempts,
		publishTimeout:  defaultPublishTimeout,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("career-compass/events"),
		logger:          logger.Component("events"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan message, r.queueSize)
	return r
}

// Enabled 是否配置了消息队列
func (r *Relay) Enabled() bool {
	return r.publisher != nil
}

// Start 声明交换机并启动后台发布协程。
// 交换机声明失败时返回错误，中继随之关闭，之后的事件直接丢弃。
func (r *Relay) Start() error {
	if !r.Enabled() {
		r.logger.Info().Msg("未配置消息队列，事件不会发布")
		return nil
	}
	if err := r.publisher.EnsureExchange(r.exchange, "topic", true); err != nil {
		r.publisher = nil
		return fmt.Errorf("声明事件交换机 %s 失败: %w", r.exchange, err)
	}

	r.wg.Add(1)
	go r.loop()
	r.logger.Info().Str("exchange", r.exchange).Str("routing_key", r.routingKey).Msg("事件中继已启动")
	return nil
}

// Stop 停止后台协程，已入队的事件会再尝试发布一次
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

// Publish 实现 Publisher 接口，只入队不等待
func (r *Relay) Publish(ctx context.Context, ev AssessmentCompleted) bool {
	if !r.Enabled() {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
	}

	msg := message{event: ev, link: trace.SpanContextFromContext(ctx)}
	select {
	case r.queue <- msg:
		return true
	default:
		r.logger.Warn().Str("event_id", ev.EventID).Msg("事件队列已满，丢弃事件")
		return false
	}
}

func (r *Relay) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			r.drain()
			return
		case msg := <-r.queue:
			r.deliver(msg)
		case <-ticker.C:
			r.retryPending()
		}
	}
}

func (r *Relay) retryPending() {
	if len(r.pending) == 0 {
		return
	}
	batch := r.pending
	r.pending = nil

	_, span := r.tracer.Start(context.Background(), "events.RetryBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(batch))))
	defer span.End()

	for _, msg := range batch {
		r.deliver(msg)
	}
}

// drain 停止前清空队列，失败的不再重试
func (r *Relay) drain() {
	for {
		select {
		case msg := <-r.queue:
			msg.attempts = r.maxAttempts - 1
			r.deliver(msg)
		default:
			if len(r.pending) > 0 {
				r.logger.Warn().Int("count", len(r.pending)).Msg("停止时仍有未发布成功的事件")
				r.pending = nil
			}
			return
		}
	}
}

func (r *Relay) deliver(msg message) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if msg.link.IsValid() {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: msg.link}))
	}
	ctx, span := r.tracer.Start(context.Background(), "events.Deliver", opts...)
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", msg.event.EventID),
		attribute.Int("event.attempt", msg.attempts+1),
	)

	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	err := r.publisher.PublishJSON(ctx, r.exchange, r.routingKey, msg.event.EventID, msg.event, true)
	if err == nil {
		r.logger.Debug().Str("event_id", msg.event.EventID).Msg("事件已发布")
		return
	}

	msg.attempts++
	if msg.attempts >= r.maxAttempts {
		r.logger.Error().Err(err).
			Str("event_id", msg.event.EventID).
			Int("attempts", msg.attempts).
			Msg("事件发布失败，放弃")
		return
	}
	r.logger.Warn().Err(err).
		Str("event_id", msg.event.EventID).
		Int("attempts", msg.attempts).
		Msg("事件发布失败，稍后重试")
	r.pending = append(r.pending, msg)
}
