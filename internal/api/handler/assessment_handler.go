package handler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	appstate "career-compass/internal/app"
	"career-compass/internal/config"
	"career-compass/internal/constants"
	"career-compass/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AssessmentHandler 问卷、结果页和聊天的 HTTP 接口
type AssessmentHandler struct {
	registry       *appstate.Registry
	requestTimeout time.Duration
}

// NewAssessmentHandler 创建 AssessmentHandler
func NewAssessmentHandler(cfg *config.Config, registry *appstate.Registry) *AssessmentHandler {
	return &AssessmentHandler{
		registry:       registry,
		requestTimeout: config.GetDuration(cfg.Server.RequestTimeout, 60*time.Second),
	}
}

// SignInRequest 登录请求
type SignInRequest struct {
	Name string `json:"name"`
}

// UpdateAnswerRequest 修改答案请求，value 为字段的 JSON 值
type UpdateAnswerRequest struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// ChatRequest 聊天请求，wait 为 true 时等待回复后再返回
type ChatRequest struct {
	Message string `json:"message"`
	Wait    bool   `json:"wait"`
}

// StateResponse 带提示的视图模型
type StateResponse struct {
	Notice string             `json:"notice,omitempty"`
	State  appstate.ViewModel `json:"state"`
}

func (h *AssessmentHandler) current(ctx context.Context, c *app.RequestContext) *appstate.App {
	return h.registry.Get(ctx, c.GetString(ClientIDKey))
}

func (h *AssessmentHandler) fail(ctx context.Context, c *app.RequestContext, err error) {
	status := StatusFor(err)
	if status >= consts.StatusInternalServerError {
		glog.CtxWarnf(ctx, "请求失败 %s %s: %v", string(c.Method()), string(c.Path()), err)
	}
	c.JSON(status, newErrorResponse(err))
}

func (h *AssessmentHandler) ok(c *app.RequestContext, a *appstate.App, notice string) {
	c.JSON(consts.StatusOK, StateResponse{Notice: notice, State: a.State()})
}

func decodeBody(c *app.RequestContext, out any) error {
	body := c.Request.Body()
	if len(body) == 0 {
		return types.NewValidationError("body", "请求体不能为空")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewValidationError("body", "请求体不是合法的 JSON")
	}
	return nil
}

// GetState GET /api/v1/state
func (h *AssessmentHandler) GetState(ctx context.Context, c *app.RequestContext) {
	h.ok(c, h.current(ctx, c), "")
}

// SignIn POST /api/v1/session
func (h *AssessmentHandler) SignIn(ctx context.Context, c *app.RequestContext) {
	var req SignInRequest
	if err := decodeBody(c, &req); err != nil {
		h.fail(ctx, c, err)
		return
	}
	a := h.current(ctx, c)
	if err := a.SignIn(ctx, req.Name); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// SignOut DELETE /api/v1/session
func (h *AssessmentHandler) SignOut(ctx context.Context, c *app.RequestContext) {
	a := h.current(ctx, c)
	if err := a.SignOut(ctx); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// Next POST /api/v1/wizard/next
func (h *AssessmentHandler) Next(ctx context.Context, c *app.RequestContext) {
	a := h.current(ctx, c)
	if err := a.Next(); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// Previous POST /api/v1/wizard/previous
func (h *AssessmentHandler) Previous(ctx context.Context, c *app.RequestContext) {
	a := h.current(ctx, c)
	if err := a.Previous(); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// UpdateAnswer PATCH /api/v1/wizard/answers
func (h *AssessmentHandler) UpdateAnswer(ctx context.Context, c *app.RequestContext) {
	var req UpdateAnswerRequest
	if err := decodeBody(c, &req); err != nil {
		h.fail(ctx, c, err)
		return
	}
	a := h.current(ctx, c)
	if err := a.Update(req.Path, req.Value); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// Submit POST /api/v1/wizard/submit，等待预测完成
func (h *AssessmentHandler) Submit(ctx context.Context, c *app.RequestContext) {
	ctx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	a := h.current(ctx, c)
	if _, err := a.Submit(ctx); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, constants.NoticePredictionSuccess)
}

// Restart POST /api/v1/result/restart
func (h *AssessmentHandler) Restart(ctx context.Context, c *app.RequestContext) {
	a := h.current(ctx, c)
	if err := a.Restart(); err != nil {
		h.fail(ctx, c, err)
		return
	}
	h.ok(c, a, "")
}

// GetResult GET /api/v1/result?wait=true，wait 时等待所有区块加载完成，超时返回当时的快照
func (h *AssessmentHandler) GetResult(ctx context.Context, c *app.RequestContext) {
	a := h.current(ctx, c)
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))
	if !wait {
		view, err := a.ResultSnapshot()
		if err != nil {
			h.fail(ctx, c, err)
			return
		}
		c.JSON(consts.StatusOK, view)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()
	view, err := a.Result(waitCtx)
	if err != nil && waitCtx.Err() == nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// SendChat POST /api/v1/chat
func (h *AssessmentHandler) SendChat(ctx context.Context, c *app.RequestContext) {
	var req ChatRequest
	if err := decodeBody(c, &req); err != nil {
		h.fail(ctx, c, err)
		return
	}
	a := h.current(ctx, c)
	done, err := a.ChatSend(req.Message)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}

	status := consts.StatusAccepted
	if req.Wait {
		timer := time.NewTimer(h.requestTimeout)
		defer timer.Stop()
		select {
		case <-done:
			status = consts.StatusOK
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	st, err := a.Chat()
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(status, st)
}

// GetChat GET /api/v1/chat
func (h *AssessmentHandler) GetChat(ctx context.Context, c *app.RequestContext) {
	st, err := h.current(ctx, c).Chat()
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, st)
}

// Health GET /api/v1/health
func (h *AssessmentHandler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok", "clients": h.registry.Len()})
}
