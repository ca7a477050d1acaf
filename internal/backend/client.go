package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"career-compass/internal/logger"
	"career-compass/internal/metrics"
	"career-compass/internal/tracing"
	"career-compass/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// 调用名称，同时用作 span 名称后缀和指标标签
const (
	OpPredict = "predict"
	OpRoadmap = "roadmap"
	OpMentors = "mentors"
	OpJobs    = "jobs"
	OpChat    = "chat"
)

var backendTracer = otel.Tracer("career-compass/backend")

// Client 外部预测/内容/聊天服务的 HTTP 客户端。
// 不做重试，也不缓存任何响应。
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxBodyBytes int64
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxBodyBytes 设置响应体大小上限，<=0 表示不限制
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBodyBytes = n }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient 创建后端客户端
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Component("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回当前使用的后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

type predictResponse struct {
	Career          json.RawMessage `json:"career"`
	Error           string          `json:"error"`
	Recommendations []string        `json:"recommendations"`
	Mentors         []types.Mentor  `json:"mentors"`
}

// Predict 提交问卷并返回推荐职业
func (c *Client) Predict(ctx context.Context, displayName string, answers types.QuestionnaireAnswers) (*types.PredictionResult, error) {
	var result *types.PredictionResult
	err := c.do(ctx, OpPredict, http.MethodPost, "/api/predict", NewPredictRequest(displayName, answers), func(status int, data []byte) error {
		var resp predictResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return types.NewDecodeError(OpPredict, status, err)
		}
		if strings.TrimSpace(resp.Error) != "" {
			return types.NewApplicationError(OpPredict, status, resp.Error)
		}
		career, err := extractCareer(resp.Career)
		if err != nil {
			return types.NewDecodeError(OpPredict, status, err)
		}
		if career == "" {
			return types.NewNoCareerError(OpPredict)
		}
		result = &types.PredictionResult{
			Career:          career,
			Recommendations: resp.Recommendations,
			Mentors:         resp.Mentors,
		}
		return nil
	}, attribute.String("user.name", tracing.SafeAttributeValue("user.name", displayName, tracing.DefaultMaxLength)))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// extractCareer 兼容 "career": "X" 和 "career": {"career": "X"} 两种形式
func extractCareer(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '{':
		var obj struct {
			Career string `json:"career"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		return strings.TrimSpace(obj.Career), nil
	default:
		return "", fmt.Errorf("career 字段类型不支持: %s", tracing.TruncateString(string(raw), tracing.DefaultMaxLength))
	}
}

// Roadmap 获取职业发展路线
func (c *Client) Roadmap(ctx context.Context, career string) ([]string, error) {
	var resp struct {
		Roadmap []string `json:"roadmap"`
	}
	if err := c.do(ctx, OpRoadmap, http.MethodGet, "/get_roadmap/"+url.PathEscape(career), nil, decodeInto(OpRoadmap, &resp)); err != nil {
		return nil, err
	}
	return resp.Roadmap, nil
}

// Mentors 获取导师列表
func (c *Client) Mentors(ctx context.Context, career string) ([]types.Mentor, error) {
	var resp struct {
		Mentors []types.Mentor `json:"mentors"`
	}
	if err := c.do(ctx, OpMentors, http.MethodGet, "/get_mentors/"+url.PathEscape(career), nil, decodeInto(OpMentors, &resp)); err != nil {
		return nil, err
	}
	return resp.Mentors, nil
}

// Jobs 获取在招职位
func (c *Client) Jobs(ctx context.Context, career string) ([]types.Job, error) {
	var resp struct {
		Jobs []types.Job `json:"jobs"`
	}
	if err := c.do(ctx, OpJobs, http.MethodGet, "/api/jobs?career="+url.QueryEscape(career), nil, decodeInto(OpJobs, &resp)); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

type chatRequest struct {
	Message string `json:"message"`
	types.ChatContext
}

// Chat 发送一条聊天消息，返回助手回复
func (c *Client) Chat(ctx context.Context, message string, chatCtx types.ChatContext) (string, error) {
	req := chatRequest{Message: message, ChatContext: chatCtx}
	if req.Recommendations == nil {
		req.Recommendations = []string{}
	}
	if req.Mentors == nil {
		req.Mentors = []types.Mentor{}
	}
	if req.Jobs == nil {
		req.Jobs = []types.Job{}
	}

	var resp struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	err := c.do(ctx, OpChat, http.MethodPost, "/api/chat", req, func(status int, data []byte) error {
		if err := json.Unmarshal(data, &resp); err != nil {
			return types.NewDecodeError(OpChat, status, err)
		}
		if strings.TrimSpace(resp.Error) != "" {
			return types.NewApplicationError(OpChat, status, resp.Error)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// responseHandler 处理 2xx 响应体
type responseHandler func(status int, data []byte) error

func decodeInto(op string, out any) responseHandler {
	return func(status int, data []byte) error {
		if err := json.Unmarshal(data, out); err != nil {
			return types.NewDecodeError(op, status, err)
		}
		return nil
	}
}

// do 在一个客户端 span 内完成一次请求，2xx 响应交给 handle 处理
func (c *Client) do(ctx context.Context, op, method, path string, body any, handle responseHandler, attrs ...attribute.KeyValue) error {
	ctx, span := backendTracer.Start(ctx, "Backend."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.HTTPMethod(method),
		attribute.String("backend.op", op),
		attribute.String("backend.path", tracing.TruncateString(path, tracing.DefaultMaxLength)),
	)
	span.SetAttributes(attrs...)

	start := time.Now()
	status, err := c.roundTrip(ctx, op, method, path, body, handle)
	c.metrics.ObserveBackendCall(op, types.ErrorKind(err), time.Since(start))

	if status != 0 {
		span.SetAttributes(semconv.HTTPStatusCode(status))
	}
	if err != nil {
		tracing.RecordBackendError(span, err, status)
		c.logger.Warn().Err(err).Str("op", op).Int("status", status).Msg("后端调用失败")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body any, handle responseHandler) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("序列化%s请求失败: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, types.NewNetworkError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, types.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := ReadAllWithLimit(resp.Body, c.maxBodyBytes)
	if err != nil {
		if IsResponseTooLarge(err) {
			return resp.StatusCode, types.NewDecodeError(op, resp.StatusCode, err)
		}
		return resp.StatusCode, types.NewNetworkError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, types.NewBackendError(op, resp.StatusCode, errorText(data))
	}
	return resp.StatusCode, handle(resp.StatusCode, data)
}

// errorText 尽量从错误响应中取出 error 字段
func errorText(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return tracing.TruncateString(strings.TrimSpace(string(data)), tracing.DefaultMaxLength)
}

// IsNetworkFailure 判断错误是否来自传输层
func IsNetworkFailure(err error) bool {
	return errors.Is(err, types.ErrNetwork)
}
