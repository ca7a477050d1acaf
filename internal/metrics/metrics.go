package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 服务的 Prometheus 指标
type Metrics struct {
	backendDuration *prometheus.HistogramVec
	backendFailures *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	staleDrops      *prometheus.CounterVec
	activeApps      prometheus.Gauge
}

var (
	defaultOnce   sync.Once
	sharedMetrics *Metrics
)

// Default 返回注册在全局 registry 上的共享实例
func Default() *Metrics {
	defaultOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics 在给定 registerer 上创建并注册指标。
// 重复注册时复用已存在的 collector，其他注册错误直接 panic。
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "career_compass",
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Latency of calls to the prediction backend.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
		backendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "career_compass",
				Subsystem: "backend",
				Name:      "request_failures_total",
				Help:      "Backend calls that failed, by error kind.",
			},
			[]string{"op", "kind"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "career_compass",
				Subsystem: "wizard",
				Name:      "submissions_total",
				Help:      "Questionnaire submissions by outcome.",
			},
			[]string{"outcome"},
		),
		staleDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "career_compass",
				Subsystem: "app",
				Name:      "stale_results_dropped_total",
				Help:      "Async results discarded because the originating view was gone.",
			},
			[]string{"source"},
		),
		activeApps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "career_compass",
				Subsystem: "app",
				Name:      "active_clients",
				Help:      "Clients with in-memory application state.",
			},
		),
	}

	m.backendDuration = register(reg, m.backendDuration)
	m.backendFailures = register(reg, m.backendFailures)
	m.submissions = register(reg, m.submissions)
	m.staleDrops = register(reg, m.staleDrops)
	m.activeApps = register(reg, m.activeApps)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveBackendCall 记录一次后端调用，kind 为空表示成功
func (m *Metrics) ObserveBackendCall(op string, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = "error"
		m.backendFailures.WithLabelValues(op, kind).Inc()
	}
	m.backendDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

// IncSubmission 记录一次问卷提交结果
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// IncStaleDrop 记录被丢弃的过期异步结果
func (m *Metrics) IncStaleDrop(source string) {
	if m == nil {
		return
	}
	m.staleDrops.WithLabelValues(source).Inc()
}

// SetActiveApps 设置内存中的客户端数量
func (m *Metrics) SetActiveApps(n int) {
	if m == nil {
		return
	}
	m.activeApps.Set(float64(n))
}

// Submissions 提交计数器
func (m *Metrics) Submissions() *prometheus.CounterVec {
	return m.submissions
}

// StaleDrops 过期结果计数器
func (m *Metrics) StaleDrops() *prometheus.CounterVec {
	return m.staleDrops
}

// ActiveApps 内存中的客户端数量
func (m *Metrics) ActiveApps() prometheus.Gauge {
	return m.activeApps
}
