package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/api/handlers"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/internal/server"
	"github.com/BaSui01/agentswarm/internal/telemetry"
	"github.com/BaSui01/agentswarm/internal/tlsutil"

	"go.uber.org/zap"
)

var errServerNotServing = errors.New("http server is not serving")

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Info("Starting AgentSwarm",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	tel, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close stores", zap.Error(err))
		}
	}()

	// 集合构建完成前不接受流量
	built, err := a.ensureDocument(ctx)
	if err != nil {
		return fmt.Errorf("prepare document collection: %w", err)
	}
	logger.Info("document collection ready",
		zap.String("fingerprint", a.fingerprint),
		zap.Bool("built", built))

	var mgr *server.Manager
	handler, err := newHandler(ctx, a, func() bool { return mgr.IsRunning() })
	if err != nil {
		return err
	}

	mgr = server.NewManager(handler, server.ConfigFrom(cfg.Server), logger)
	logger.Info("listening", zap.Int("port", cfg.Server.HTTPPort))
	if err := mgr.Run(ctx); err != nil {
		return err
	}
	logger.Info("agentswarm stopped")
	return nil
}

// newHandler 组装路由与中间件链。serving 报告 HTTP 服务是否仍在接收流量，
// 关闭开始后 /ready 返回 503
func newHandler(ctx context.Context, a *app, serving func() bool) (http.Handler, error) {
	router, err := a.router()
	if err != nil {
		return nil, err
	}

	chat := handlers.NewChatHandler(router, a.logger)
	health := handlers.NewHealthHandler(Version, a.logger)
	health.RegisterCheck(handlers.NewFuncCheck("conversation_store", a.store.Ping))
	health.RegisterCheck(handlers.NewFuncCheck("collection", func(ctx context.Context) error {
		return a.cache.Ready(ctx, a.fingerprint)
	}))
	health.RegisterCheck(handlers.NewFuncCheck("http_server", func(context.Context) error {
		if !serving() {
			return errServerNotServing
		}
		return nil
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", chat.HandleChat)
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /version", health.HandleVersion(BuildTime, GitCommit))
	mux.Handle("GET /metrics", a.metrics.Handler())

	return Chain(mux,
		Recovery(a.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(a.metrics),
		RequestLogger(a.logger),
		RateLimiter(ctx, float64(a.cfg.Server.RateLimitRPS), a.cfg.Server.RateLimitBurst, a.logger),
	), nil
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return checkHealth(*addr, 5*time.Second)
}

func checkHealth(addr string, timeout time.Duration) error {
	client := tlsutil.SecureHTTPClient(timeout)
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// loadConfig 加载并校验配置；path 为空时只用默认值与环境变量
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("AGENTSWARM").
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
