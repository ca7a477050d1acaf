package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"career-compass/internal/api/handler"
	"career-compass/internal/api/router"
	appstate "career-compass/internal/app"
	"career-compass/internal/config"
	"career-compass/internal/constants"
	"career-compass/internal/metrics"
	"career-compass/internal/session"
	"career-compass/internal/types"
	"career-compass/internal/wizard"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend 固定返回 Data Scientist 的外部服务
type stubBackend struct {
	mu         sync.Mutex
	predictErr error
}

func (s *stubBackend) Predict(ctx context.Context, name string, answers types.QuestionnaireAnswers) (*types.PredictionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.predictErr != nil {
		return nil, s.predictErr
	}
	return &types.PredictionResult{Career: "Data Scientist", Recommendations: []string{"Data Scientist"}}, nil
}

func (s *stubBackend) Roadmap(ctx context.Context, career string) ([]string, error) {
	return []string{"Learn Python", "Build portfolio"}, nil
}

func (s *stubBackend) Mentors(ctx context.Context, career string) ([]types.Mentor, error) {
	return []types.Mentor{}, nil
}

func (s *stubBackend) Jobs(ctx context.Context, career string) ([]types.Job, error) {
	return []types.Job{{Title: "Data Scientist", Company: "Acme", Location: "Remote", Salary: "$100k", Link: "http://x"}}, nil
}

func (s *stubBackend) Chat(ctx context.Context, message string, chatCtx types.ChatContext) (string, error) {
	return "Focus on Python and statistics.", nil
}

type testServer struct {
	h        *server.Hertz
	backend  *stubBackend
	registry *appstate.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.RequestTimeout = "5s"

	reg := prometheus.NewRegistry()
	backend := &stubBackend{}
	registry := appstate.NewRegistry(appstate.Deps{
		Backend:       backend,
		Sessions:      session.NewMemoryStore(),
		Metrics:       metrics.MustNewMetrics(reg),
		Caps:          wizard.DefaultCaps(),
		ChatQueueSize: cfg.App.ChatQueueSize,
		ChatTimeout:   5 * time.Second,
	}, time.Hour)
	t.Cleanup(registry.Close)

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, handler.NewAssessmentHandler(cfg, registry), router.Options{
		ClientCookie:       cfg.Server.ClientCookie,
		ClientCookieMaxAge: cfg.Server.ClientCookieMaxAge,
		Gatherer:           reg,
	})
	return &testServer{h: h, backend: backend, registry: registry}
}

// client 记住服务端下发的 cookie
type client struct {
	t      *testing.T
	srv    *testServer
	cookie string
}

func (c *client) do(method, url string, body any) *ut.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if c.cookie != "" {
		headers = append(headers, ut.Header{Key: "Cookie", Value: "cc_client=" + c.cookie})
	}
	resp := ut.PerformRequest(c.srv.h.Engine, method, url, &ut.Body{Body: &buf, Len: buf.Len()}, headers...)

	var ck protocol.Cookie
	ck.SetKey("cc_client")
	if resp.Result().Header.Cookie(&ck) {
		c.cookie = string(ck.Value())
	}
	return resp
}

func decodeState(t *testing.T, resp *ut.ResponseRecorder) handler.StateResponse {
	t.Helper()
	var out handler.StateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func decodeError(t *testing.T, resp *ut.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var out handler.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestNewClientGetsCookieAndSignInView(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, srv: srv}

	resp := c.do("GET", "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, c.cookie)
	assert.Equal(t, appstate.ViewSignIn, decodeState(t, resp).State.View)

	// 同一个 cookie 对应同一个客户端
	first := c.cookie
	c.do("GET", "/api/v1/state", nil)
	assert.Equal(t, first, c.cookie)
	assert.Equal(t, 1, srv.registry.Len())
}

func TestInvalidCookieIsReplaced(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, srv: srv, cookie: "not-a-uuid"}

	resp := c.do("GET", "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEqual(t, "not-a-uuid", c.cookie)
	assert.Len(t, c.cookie, 36)
}

func TestSignInRequiresName(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}

	resp := c.do("POST", "/api/v1/session", map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	e := decodeError(t, resp)
	assert.Equal(t, "validation", e.Kind)
	assert.Equal(t, constants.NoticeSignInNameRequired, e.Notice)

	resp = c.do("POST", "/api/v1/session", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWizardRequiresSession(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}

	resp := c.do("POST", "/api/v1/wizard/next", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "session", decodeError(t, resp).Kind)
}

func TestSubmitFromFirstStepConflicts(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}
	require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/session", map[string]string{"name": "Ada"}).Code)

	resp := c.do("POST", "/api/v1/wizard/submit", nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "state", decodeError(t, resp).Kind)
}

func TestSubmitBackendFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.backend.predictErr = types.NewBackendError("predict", 500, "model not loaded")
	c := &client{t: t, srv: srv}
	require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/session", map[string]string{"name": "Ada"}).Code)
	for i := 0; i < wizard.StepCount-1; i++ {
		require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/wizard/next", nil).Code)
	}

	resp := c.do("POST", "/api/v1/wizard/submit", nil)
	require.Equal(t, http.StatusBadGateway, resp.Code)
	e := decodeError(t, resp)
	assert.Equal(t, "backend", e.Kind)
	assert.Equal(t, constants.NoticeBackendError, e.Notice)

	st := decodeState(t, c.do("GET", "/api/v1/state", nil))
	assert.Equal(t, appstate.ViewWizard, st.State.View)
	assert.Equal(t, wizard.StepCount-1, st.State.Wizard.StepIndex)
}

func TestFullAssessmentFlow(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}

	resp := c.do("POST", "/api/v1/session", map[string]string{"name": " Ada "})
	require.Equal(t, http.StatusOK, resp.Code)
	st := decodeState(t, resp)
	assert.Equal(t, "Ada", st.State.Name)
	assert.Equal(t, 0, st.State.Wizard.StepIndex)

	resp = c.do("PATCH", "/api/v1/wizard/answers", map[string]any{
		"path":  "technicalSkills",
		"value": map[string]any{"skill": "Python", "level": 8, "yearsExperience": 3},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	st = decodeState(t, resp)
	require.Len(t, st.State.Wizard.Answers.TechnicalSkills, 1)
	assert.Equal(t, 8, st.State.Wizard.Answers.TechnicalSkills[0].Level)

	resp = c.do("PATCH", "/api/v1/wizard/answers", map[string]any{
		"path":  "technicalSkills",
		"value": map[string]any{"skill": "Python", "level": 11},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	for i := 0; i < wizard.StepCount-1; i++ {
		require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/wizard/next", nil).Code)
	}
	resp = c.do("POST", "/api/v1/wizard/next", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = c.do("POST", "/api/v1/wizard/submit", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	st = decodeState(t, resp)
	assert.Equal(t, constants.NoticePredictionSuccess, st.Notice)
	assert.Equal(t, appstate.ViewResult, st.State.View)
	assert.Equal(t, "Data Scientist", st.State.Result.Career)

	resp = c.do("GET", "/api/v1/result?wait=true", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, true, view["complete"])
	mentors := view["mentors"].(map[string]any)
	assert.Equal(t, "unavailable", mentors["status"])
	assert.Equal(t, constants.MentorsEmptyMessage, mentors["message"])

	resp = c.do("POST", "/api/v1/chat", map[string]any{"message": "What skills do I need?", "wait": true})
	require.Equal(t, http.StatusOK, resp.Code)
	var chatState appstate.ChatState
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &chatState))
	require.Len(t, chatState.Turns, 3)
	assert.Equal(t, "Focus on Python and statistics.", chatState.Turns[2].Content)

	resp = c.do("POST", "/api/v1/chat", map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = c.do("DELETE", "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	st = decodeState(t, resp)
	assert.Equal(t, appstate.ViewSignIn, st.State.View)
	assert.Nil(t, st.State.Result)

	resp = c.do("GET", "/api/v1/chat", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRestartReturnsToWizard(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}
	require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/session", map[string]string{"name": "Ada"}).Code)
	resp := c.do("POST", "/api/v1/result/restart", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	for i := 0; i < wizard.StepCount-1; i++ {
		c.do("POST", "/api/v1/wizard/next", nil)
	}
	require.Equal(t, http.StatusOK, c.do("POST", "/api/v1/wizard/submit", nil).Code)

	resp = c.do("POST", "/api/v1/result/restart", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	st := decodeState(t, resp)
	assert.Equal(t, appstate.ViewWizard, st.State.View)
	assert.Equal(t, "Ada", st.State.Name)
	assert.Equal(t, 0, st.State.Wizard.StepIndex)
}

func TestHealthAndMetrics(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t)}

	resp := c.do("GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)

	// 一次请求创建了客户端，指标应当反映出来
	c.do("GET", "/api/v1/state", nil)

	resp = c.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, string(resp.Result().Header.ContentType()), "text/plain")
	assert.True(t, strings.Contains(resp.Body.String(), "career_compass_app_active_clients 1"))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		notice string
	}{
		{types.NewValidationError("name", "empty"), http.StatusBadRequest, constants.NoticeSignInNameRequired},
		{types.ErrNoSession, http.StatusUnauthorized, ""},
		{types.ErrSubmitInFlight, http.StatusConflict, ""},
		{types.ErrChatQueueFull, http.StatusConflict, ""},
		{types.NewNetworkError("predict", context.DeadlineExceeded), http.StatusBadGateway, constants.NoticeBackendUnreachable},
		{types.NewNoCareerError("predict"), http.StatusBadGateway, constants.NoticeNoCareer},
		{types.NewApplicationError("predict", 200, "bad input"), http.StatusBadGateway, constants.NoticeBackendError},
		{types.NewDecodeError("predict", 200, nil), http.StatusBadGateway, constants.NoticeBackendError},
		{context.Canceled, http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, handler.StatusFor(tc.err), tc.err.Error())
		assert.Equal(t, tc.notice, handler.NoticeFor(tc.err), tc.err.Error())
	}
}
