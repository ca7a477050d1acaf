package aggregator

import (
	"context"
	"sync"
	"sync/atomic"

	"career-compass/internal/constants"
	"career-compass/internal/logger"
	"career-compass/internal/types"

	"golang.org/x/sync/errgroup"
)

// Fetcher 结果页三个区块的数据来源
type Fetcher interface {
	Roadmap(ctx context.Context, career string) ([]string, error)
	Mentors(ctx context.Context, career string) ([]types.Mentor, error)
	Jobs(ctx context.Context, career string) ([]types.Job, error)
}

// Status 区块状态
type Status string

const (
	StatusLoading     Status = "loading"
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)

// Section 区块快照，不可用时 Items 为空并附带提示文案
type Section[T any] struct {
	Status  Status `json:"status"`
	Items   []T    `json:"items"`
	Message string `json:"message,omitempty"`
}

// MentorCard 结果页上的导师卡片，ExperienceText 形如 "12 years"
type MentorCard struct {
	types.Mentor
	ExperienceText string `json:"experience_text,omitempty"`
}

// View 结果页的合并视图
type View struct {
	Career          string              `json:"career"`
	Recommendations []string            `json:"recommendations"`
	Roadmap         Section[string]     `json:"roadmap"`
	Mentors         Section[MentorCard] `json:"mentors"`
	Jobs            Section[types.Job]  `json:"jobs"`
	Complete        bool                `json:"complete"`
}

// ChatContext 聊天请求使用的上下文，导师按后端原始格式发送
func (v View) ChatContext() types.ChatContext {
	mentors := make([]types.Mentor, 0, len(v.Mentors.Items))
	for _, card := range v.Mentors.Items {
		mentors = append(mentors, card.Mentor)
	}
	return types.ChatContext{
		Career:          v.Career,
		Recommendations: v.Recommendations,
		Mentors:         mentors,
		Jobs:            v.Jobs.Items,
	}
}

func mentorCards(s Section[types.Mentor]) Section[MentorCard] {
	cards := make([]MentorCard, 0, len(s.Items))
	for _, m := range s.Items {
		cards = append(cards, MentorCard{Mentor: m, ExperienceText: m.ExperienceYears()})
	}
	return Section[MentorCard]{Status: s.Status, Items: cards, Message: s.Message}
}

type outcome[T any] struct {
	items []T
	err   error
}

// slot 一个区块的最终结果，只由对应的抓取协程写入一次，nil 表示仍在加载
type slot[T any] struct {
	state atomic.Pointer[outcome[T]]
}

func (s *slot[T]) resolve(items []T, err error) {
	s.state.Store(&outcome[T]{items: items, err: err})
}

func (s *slot[T]) section(emptyMessage string) Section[T] {
	o := s.state.Load()
	if o == nil {
		return Section[T]{Status: StatusLoading, Items: []T{}}
	}
	if o.err != nil || len(o.items) == 0 {
		return Section[T]{Status: StatusUnavailable, Items: []T{}, Message: emptyMessage}
	}
	return Section[T]{Status: StatusReady, Items: o.items}
}

// Aggregate 某个职业对应的一组结果页数据
type Aggregate struct {
	career          string
	recommendations []string

	roadmap slot[string]
	mentors slot[types.Mentor]
	jobs    slot[types.Job]

	cancel context.CancelFunc
	group  errgroup.Group
	done   chan struct{}
	once   sync.Once
}

// Start 并发抓取路线、导师和职位，立即返回。
// 任一区块失败或为空都不影响其他区块。
func Start(ctx context.Context, fetcher Fetcher, result types.PredictionResult) *Aggregate {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &Aggregate{
		career:          result.Career,
		recommendations: append([]string{}, result.Recommendations...),
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	log := logger.Component("aggregator").With().Str("career", result.Career).Logger()

	a.group.Go(func() error {
		items, err := fetcher.Roadmap(ctx, a.career)
		if err != nil {
			log.Debug().Err(err).Msg("路线获取失败")
		}
		a.roadmap.resolve(items, err)
		return nil
	})
	a.group.Go(func() error {
		items, err := fetcher.Mentors(ctx, a.career)
		if err != nil {
			log.Debug().Err(err).Msg("导师获取失败")
		}
		a.mentors.resolve(items, err)
		return nil
	})
	a.group.Go(func() error {
		items, err := fetcher.Jobs(ctx, a.career)
		if err != nil {
			log.Debug().Err(err).Msg("职位获取失败")
		}
		a.jobs.resolve(items, err)
		return nil
	})

	go func() {
		_ = a.group.Wait()
		a.Cancel()
		close(a.done)
	}()
	return a
}

// Snapshot 合并三个区块的当前状态，结果只取决于各区块的状态
func (a *Aggregate) Snapshot() View {
	v := View{
		Career:          a.career,
		Recommendations: append([]string{}, a.recommendations...),
		Roadmap:         a.roadmap.section(constants.RoadmapEmptyMessage),
		Mentors:         mentorCards(a.mentors.section(constants.MentorsEmptyMessage)),
		Jobs:            a.jobs.section(constants.JobsEmptyMessage),
	}
	v.Complete = v.Roadmap.Status != StatusLoading &&
		v.Mentors.Status != StatusLoading &&
		v.Jobs.Status != StatusLoading
	return v
}

// Wait 等待三个区块结束或 ctx 取消，返回当时的快照
func (a *Aggregate) Wait(ctx context.Context) (View, error) {
	select {
	case <-a.done:
		return a.Snapshot(), nil
	case <-ctx.Done():
		return a.Snapshot(), ctx.Err()
	}
}

// Cancel 放弃尚未完成的抓取
func (a *Aggregate) Cancel() {
	a.once.Do(a.cancel)
}
