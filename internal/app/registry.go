package app

import (
	"context"
	"sync"
	"time"

	"career-compass/internal/logger"

	"github.com/rs/zerolog"
)

// Registry 按客户端 ID 保存 App，长时间不活跃的会被回收
type Registry struct {
	deps        *Deps
	idleTimeout time.Duration
	logger      zerolog.Logger

	mu   sync.Mutex
	apps map[string]*App
}

// NewRegistry 创建注册表，idleTimeout <= 0 表示不回收
func NewRegistry(deps Deps, idleTimeout time.Duration) *Registry {
	return &Registry{
		deps:        &deps,
		idleTimeout: idleTimeout,
		logger:      logger.Component("app"),
		apps:        make(map[string]*App),
	}
}

// Get 返回客户端的 App，不存在时创建，并从会话存储恢复登录状态
func (r *Registry) Get(ctx context.Context, clientID string) *App {
	now := r.deps.now()

	r.mu.Lock()
	a, ok := r.apps[clientID]
	r.mu.Unlock()
	if ok {
		a.touch(now)
		return a
	}

	// 先恢复再放入注册表，其他请求不会看到恢复前的状态
	fresh := newApp(clientID, r.deps)
	s, found, err := r.deps.Sessions.Load(ctx, clientID)
	switch {
	case err != nil:
		r.logger.Warn().Err(err).Str("client_id", clientID).Msg("读取会话失败，按未登录处理")
	case found:
		fresh.restore(s)
	}

	r.mu.Lock()
	if existing, ok := r.apps[clientID]; ok {
		a = existing
	} else {
		a = fresh
		r.apps[clientID] = a
		r.deps.Metrics.SetActiveApps(len(r.apps))
	}
	r.mu.Unlock()

	a.touch(now)
	return a
}

// Len 当前内存中的客户端数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// Sweep 回收在 now 之前 idleTimeout 内没有访问过的 App，返回回收数量。
// 会话仍在存储中，再次访问时会恢复登录状态。
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	var evicted []*App
	r.mu.Lock()
	for id, a := range r.apps {
		if now.Sub(a.idleSince()) > r.idleTimeout {
			evicted = append(evicted, a)
			delete(r.apps, id)
		}
	}
	r.deps.Metrics.SetActiveApps(len(r.apps))
	r.mu.Unlock()

	for _, a := range evicted {
		a.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug().Int("count", len(evicted)).Msg("回收不活跃的客户端")
	}
	return len(evicted)
}

// RunSweeper 按 interval 定期回收，直到 ctx 结束
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.deps.now())
		}
	}
}

// Close 释放所有 App 的后台资源
func (r *Registry) Close() {
	r.mu.Lock()
	apps := r.apps
	r.apps = make(map[string]*App)
	r.mu.Unlock()

	for _, a := range apps {
		a.Close()
	}
}
