package storage

import (
	"context"
	"fmt"
	"strings"

	"career-compass/internal/config"
	"career-compass/internal/logger"
)

// Storage 存储管理器，聚合外部依赖。
// 各组件都是可选的，没有配置或初始化失败时为 nil，由调用方降级处理。
type Storage struct {
	// 消息队列
	RabbitMQ *RabbitMQ

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器，单个组件失败只记录警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	log := logger.Component("storage")
	storage := &Storage{}
	var err error
	var initErrors []string

	if cfg.RabbitMQ.URL != "" {
		log.Info().Msg("初始化RabbitMQ...")
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("初始化RabbitMQ失败，事件将不会发布")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	} else {
		log.Info().Msg("RabbitMQ未配置, 跳过初始化.")
	}

	if cfg.Redis.Address != "" {
		log.Info().Str("address", cfg.Redis.Address).Msg("初始化Redis...")
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("初始化Redis失败，会话只保存在内存中")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Info().Msg("Redis未配置, 跳过初始化.")
	}

	if len(initErrors) > 0 {
		log.Warn().Str("components", strings.Join(initErrors, "; ")).Msg("以下存储组件初始化失败")
	}
	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
