// Package app 每个客户端的根状态：登录、问卷、结果三个视图之间的切换
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"career-compass/internal/aggregator"
	"career-compass/internal/chat"
	"career-compass/internal/events"
	"career-compass/internal/logger"
	"career-compass/internal/metrics"
	"career-compass/internal/session"
	"career-compass/internal/types"
	"career-compass/internal/wizard"

	"github.com/rs/zerolog"
)

// View 当前视图，任何时刻只有一个
type View string

const (
	ViewSignIn View = "sign_in"
	ViewWizard View = "wizard"
	ViewResult View = "result"
)

// Backend 外部服务，*backend.Client 实现了它
type Backend interface {
	Predict(ctx context.Context, displayName string, answers types.QuestionnaireAnswers) (*types.PredictionResult, error)
	aggregator.Fetcher
	chat.Sender
}

// Deps 所有 App 共享的依赖
type Deps struct {
	Backend  Backend
	Sessions session.Store
	Events   events.Publisher // 可以为 nil
	Metrics  *metrics.Metrics // 可以为 nil
	Caps     wizard.Caps

	ChatQueueSize int
	ChatTimeout   time.Duration
	NowFunc       func() time.Time
}

func (d *Deps) now() time.Time {
	if d.NowFunc != nil {
		return d.NowFunc()
	}
	return time.Now()
}

// App 单个客户端的应用状态。
// 每次视图切换都会增加 generation，异步结果只有在 generation 未变时才会生效。
type App struct {
	id     string
	deps   *Deps
	logger zerolog.Logger

	mu         sync.Mutex
	generation uint64
	view       View
	sess       *session.Session
	wizard     *wizard.Machine
	result     *types.PredictionResult
	agg        *aggregator.Aggregate
	chat       *chat.Session
	lastSeen   time.Time
}

func newApp(id string, deps *Deps) *App {
	return &App{
		id:       id,
		deps:     deps,
		logger:   logger.Component("app").With().Str("client_id", id).Logger(),
		view:     ViewSignIn,
		lastSeen: deps.now(),
	}
}

// ID 客户端标识
func (a *App) ID() string {
	return a.id
}

// restore 用持久化的会话恢复登录状态，只在创建后调用一次
func (a *App) restore(s session.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sess = &s
	a.wizard = wizard.New(a.deps.Caps)
	a.view = ViewWizard
	a.generation++
}

func (a *App) touch(now time.Time) {
	a.mu.Lock()
	a.lastSeen = now
	a.mu.Unlock()
}

func (a *App) idleSince() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeen
}

// requireView 调用方需持有 a.mu
func (a *App) requireView(want View) error {
	if a.view == want {
		return nil
	}
	if a.view == ViewSignIn {
		return types.ErrNoSession
	}
	return types.ErrWrongView
}

// SignIn 登录，名字去掉空白后不能为空
func (a *App) SignIn(ctx context.Context, name string) error {
	s, err := session.NewSession(name)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view != ViewSignIn {
		return types.ErrWrongView
	}
	if err := a.deps.Sessions.Save(ctx, a.id, s); err != nil {
		return fmt.Errorf("登录失败: %w", err)
	}

	a.sess = &s
	a.wizard = wizard.New(a.deps.Caps)
	a.view = ViewWizard
	a.generation++
	a.logger.Info().Msg("用户已登录")
	return nil
}

// SignOut 退出登录并清空所有状态
func (a *App) SignOut(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return types.ErrNoSession
	}
	if err := a.deps.Sessions.Clear(ctx, a.id); err != nil {
		// 本地状态照常清空，下次访问时仍可能从存储恢复
		a.logger.Error().Err(err).Msg("删除持久化会话失败")
	}

	a.teardownResult()
	a.sess = nil
	a.wizard = nil
	a.view = ViewSignIn
	a.generation++
	a.logger.Info().Msg("用户已退出")
	return nil
}

// teardownResult 释放结果页资源，调用方需持有 a.mu
func (a *App) teardownResult() {
	if a.agg != nil {
		a.agg.Cancel()
		a.agg = nil
	}
	if a.chat != nil {
		a.chat.Close()
		a.chat = nil
	}
	a.result = nil
}

func (a *App) currentWizard() (*wizard.Machine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireView(ViewWizard); err != nil {
		return nil, err
	}
	return a.wizard, nil
}

// Next 前进一步
func (a *App) Next() error {
	w, err := a.currentWizard()
	if err != nil {
		return err
	}
	return w.Next()
}

// Previous 后退一步
func (a *App) Previous() error {
	w, err := a.currentWizard()
	if err != nil {
		return err
	}
	return w.Previous()
}

// Update 修改 path 对应的答案
func (a *App) Update(path string, value []byte) error {
	w, err := a.currentWizard()
	if err != nil {
		return err
	}
	return w.Update(path, value)
}

// Submit 提交问卷并等待预测结果。
// 成功后进入结果页，开始加载路线、导师和职位，并创建聊天会话。
func (a *App) Submit(ctx context.Context) (*types.PredictionResult, error) {
	a.mu.Lock()
	if err := a.requireView(ViewWizard); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	gen := a.generation
	w := a.wizard
	name := a.sess.Name
	a.mu.Unlock()

	res, err := w.Submit(ctx, wizard.PredictorFunc(func(ctx context.Context, answers types.QuestionnaireAnswers) (*types.PredictionResult, error) {
		return a.deps.Backend.Predict(ctx, name, answers)
	}))
	if err != nil {
		outcome := types.ErrorKind(err)
		if types.IsBackendFailure(err) {
			a.logger.Warn().Err(err).Str("kind", outcome).Msg("预测失败")
		}
		a.deps.Metrics.IncSubmission(outcome)
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		a.deps.Metrics.IncSubmission("stale")
		a.deps.Metrics.IncStaleDrop("prediction")
		a.logger.Info().Str("career", res.Career).Msg("视图已切换，丢弃过期的预测结果")
		return nil, types.ErrWrongView
	}
	a.deps.Metrics.IncSubmission("ok")

	a.result = res
	a.agg = aggregator.Start(ctx, a.deps.Backend, *res)
	agg := a.agg
	a.chat = chat.NewSession(a.id, a.deps.Backend,
		func() types.ChatContext { return agg.Snapshot().ChatContext() },
		chat.WithQueueSize(a.deps.ChatQueueSize),
		chat.WithRequestTimeout(a.deps.ChatTimeout),
	)
	// 提交成功后答案不再保留
	a.wizard = nil
	a.view = ViewResult
	a.generation++
	a.logger.Info().Str("career", res.Career).Msg("已得到职业推荐")

	a.publishCompleted(ctx, *res)
	return res, nil
}

func (a *App) publishCompleted(ctx context.Context, res types.PredictionResult) {
	if a.deps.Events == nil {
		return
	}
	ev, err := events.NewAssessmentCompleted(a.id, res, a.deps.now())
	if err != nil {
		a.logger.Error().Err(err).Msg("创建完成事件失败")
		return
	}
	a.deps.Events.Publish(ctx, ev)
}

// Restart 离开结果页，重新开始问卷，保留登录状态
func (a *App) Restart() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireView(ViewResult); err != nil {
		return err
	}
	a.teardownResult()
	a.wizard = wizard.New(a.deps.Caps)
	a.view = ViewWizard
	a.generation++
	return nil
}

func (a *App) currentChat() (*chat.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireView(ViewResult); err != nil {
		return nil, err
	}
	return a.chat, nil
}

// ChatSend 发送一条聊天消息，返回的 channel 在回复写入后关闭
func (a *App) ChatSend(text string) (<-chan struct{}, error) {
	c, err := a.currentChat()
	if err != nil {
		return nil, err
	}
	return c.Send(text)
}

// Chat 当前聊天记录
func (a *App) Chat() (ChatState, error) {
	c, err := a.currentChat()
	if err != nil {
		return ChatState{}, err
	}
	return ChatState{Turns: c.Transcript(), Responding: c.Responding()}, nil
}

func (a *App) currentAggregate() (*aggregator.Aggregate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireView(ViewResult); err != nil {
		return nil, err
	}
	return a.agg, nil
}

// Result 等待结果页数据加载完成或 ctx 结束，ctx 结束时返回当时的快照和 ctx 的错误
func (a *App) Result(ctx context.Context) (aggregator.View, error) {
	agg, err := a.currentAggregate()
	if err != nil {
		return aggregator.View{}, err
	}
	return agg.Wait(ctx)
}

// ResultSnapshot 结果页当前快照，不等待
func (a *App) ResultSnapshot() (aggregator.View, error) {
	agg, err := a.currentAggregate()
	if err != nil {
		return aggregator.View{}, err
	}
	return agg.Snapshot(), nil
}

// Close 释放后台资源，App 从注册表移除时调用
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardownResult()
	a.generation++
}
