package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"career-compass/internal/api/handler"
	"career-compass/internal/api/router"
	"career-compass/internal/app"
	"career-compass/internal/backend"
	"career-compass/internal/config"
	"career-compass/internal/events"
	appCoreLogger "career-compass/internal/logger"
	"career-compass/internal/metrics"
	"career-compass/internal/session"
	"career-compass/internal/storage"
	"career-compass/internal/tracing"
	"career-compass/internal/wizard"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

var (
	version = "1.0.0" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	// .env 可选，不存在时直接使用进程环境变量
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	appCoreLogger.BridgeHertz(cfg.Logger.Level)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		glog.Warnf("读取 .env 失败: %v", envErr)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		glog.Fatalf("初始化 tracing 失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()

	var sessions session.Store
	if storageManager.Redis != nil {
		sessions = session.NewRedisStore(storageManager.Redis)
		glog.Info("会话存储: Redis")
	} else {
		sessions = session.NewMemoryStore()
		glog.Warn("未配置 Redis，会话只保存在内存中，重启后需要重新登录")
	}

	// RabbitMQ 为 nil 时不能直接传入，否则接口值非 nil
	var mq storage.MessageQueue
	if storageManager.RabbitMQ != nil {
		mq = storageManager.RabbitMQ
	}
	eventRelay := events.NewRelay(mq,
		cfg.RabbitMQ.AssessmentExchange,
		cfg.RabbitMQ.CompletedRoutingKey,
		events.WithPublishTimeout(config.GetDuration(cfg.RabbitMQ.PublishTimeout, 5*time.Second)),
	)
	// 事件只是尽力发布，启动失败不影响服务
	if err := eventRelay.Start(); err != nil {
		glog.Warnf("启动事件中继失败，不再发布事件: %v", err)
	}

	m := metrics.Default()
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.BackendTimeout(),
		backend.WithMaxBodyBytes(cfg.Backend.MaxBodyBytes),
		backend.WithMetrics(m),
	)
	glog.Infof("外部服务地址: %s", backendClient.BaseURL())

	registry := app.NewRegistry(app.Deps{
		Backend:  backendClient,
		Sessions: sessions,
		Events:   eventRelay,
		Metrics:  m,
		Caps: wizard.Caps{
			CareerValues: cfg.Assessment.CareerValueCap,
			Industries:   cfg.Assessment.IndustryCap,
		},
		ChatQueueSize: cfg.App.ChatQueueSize,
		ChatTimeout:   cfg.BackendTimeout(),
	}, config.GetDuration(cfg.App.IdleTimeout, 2*time.Hour))
	go registry.RunSweeper(ctx, config.GetDuration(cfg.App.SweepInterval, 5*time.Minute))

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, handler.NewAssessmentHandler(cfg, registry), router.Options{
		ClientCookie:       cfg.Server.ClientCookie,
		ClientCookieMaxAge: cfg.Server.ClientCookieMaxAge,
		Gatherer:           prometheus.DefaultGatherer,
	})
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}

	cancel()
	registry.Close()
	eventRelay.Stop()
	glog.Info("事件中继已停止")

	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭 tracing 失败: %v", err)
	}
	glog.Info("优雅退出完成")
}
