package router

import (
	"context"

	"career-compass/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options 路由需要的配置
type Options struct {
	ClientCookie       string
	ClientCookieMaxAge int // 天
	// Gatherer 为 nil 时不注册 /metrics
	Gatherer prometheus.Gatherer
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, assessmentHandler *handler.AssessmentHandler, opts Options) {
	h.Use(handler.AccessLog())

	// 健康检查不需要客户端标识
	h.GET("/api/v1/health", assessmentHandler.Health)

	if opts.Gatherer != nil {
		h.GET("/metrics", metricsHandler(opts.Gatherer))
	}

	api := h.Group("/api/v1", handler.ClientIdentity(opts.ClientCookie, opts.ClientCookieMaxAge))

	api.GET("/state", assessmentHandler.GetState)

	api.POST("/session", assessmentHandler.SignIn)
	api.DELETE("/session", assessmentHandler.SignOut)

	wizard := api.Group("/wizard")
	wizard.POST("/next", assessmentHandler.Next)
	wizard.POST("/previous", assessmentHandler.Previous)
	wizard.PATCH("/answers", assessmentHandler.UpdateAnswer)
	wizard.POST("/submit", assessmentHandler.Submit)

	api.GET("/result", assessmentHandler.GetResult)
	api.POST("/result/restart", assessmentHandler.Restart)

	api.GET("/chat", assessmentHandler.GetChat)
	api.POST("/chat", assessmentHandler.SendChat)

	h.NoRoute(func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "not found", "kind": "not_found"})
	})
}

// metricsHandler 把 promhttp 的 net/http handler 挂到 hertz 上
func metricsHandler(gatherer prometheus.Gatherer) app.HandlerFunc {
	promHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c context.Context, ctx *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&ctx.Request)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error(), "kind": "internal"})
			return
		}
		promHandler.ServeHTTP(adaptor.GetCompatResponseWriter(&ctx.Response), req.WithContext(c))
	}
}
