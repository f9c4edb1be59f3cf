package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"jsjudge/internal/common/cache"
	commonmw "jsjudge/internal/common/http/middleware"
	"jsjudge/internal/judge/controller"
	"jsjudge/internal/judge/repository"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/evaluator"
	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/isolate"
	"jsjudge/internal/judge/sandbox/observer"
	"jsjudge/internal/judge/sandbox/runner"
	"jsjudge/internal/judge/service"
	"jsjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	// go-zero caches report hit ratios through logx; zap is the only log sink.
	logx.DisableStat()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observer.NewPrometheus(registry)

	pool, err := isolate.NewPool(appCfg.Sandbox.toPoolConfig())
	if err != nil {
		logger.Error(context.Background(), "init isolate pool failed", zap.Error(err))
		return
	}
	defer pool.Close()

	compiler, err := harness.NewCompiler(appCfg.Judge.toHarnessConfig())
	if err != nil {
		logger.Error(context.Background(), "init harness compiler failed", zap.Error(err))
		return
	}
	jobRunner := runner.NewRunner(pool, metrics)
	worker := sandbox.NewWorker(evaluator.NewEvaluator(compiler, jobRunner, metrics), appCfg.Judge.toWorkerConfig(), metrics)

	statusRepo, closeStatus, err := buildStatusRepository(appCfg.Status)
	if err != nil {
		logger.Error(context.Background(), "init status repository failed", zap.Error(err))
		return
	}
	defer closeStatus()
	var publisher repository.StatusEventPublisher
	if len(appCfg.Events.Brokers) > 0 {
		kafkaPublisher, err := repository.NewKafkaStatusEventPublisher(appCfg.Events)
		if err != nil {
			logger.Error(context.Background(), "init status event publisher failed", zap.Error(err))
			return
		}
		defer func() {
			_ = kafkaPublisher.Close()
		}()
		publisher = kafkaPublisher
	}

	judgeSvc, err := service.NewService(service.Config{
		Executor:          worker,
		StatusRepo:        statusRepo,
		Publisher:         publisher,
		MaxInFlight:       appCfg.Judge.MaxInFlight,
		SubmissionTimeout: appCfg.Judge.SubmissionTimeout,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}
	worker.SetStatusReporter(judgeSvc)

	httpServer := buildHTTPServer(appCfg.Server, judgeSvc, pool, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if err := judgeSvc.Wait(ctx); err != nil {
		logger.Warn(context.Background(), "background submissions still running at shutdown", zap.Int("running", judgeSvc.Running()))
	}
}

func buildStatusRepository(cfg StatusConfig) (*repository.StatusRepository, func(), error) {
	if cfg.Redis.Addr == "" {
		repo, err := repository.NewStatusRepository(cfg.TTL, cfg.Limit)
		return repo, func() {}, err
	}
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewRedisStatusRepository(redisCache, cfg.TTL)
	if err != nil {
		_ = redisCache.Close()
		return nil, nil, err
	}
	logger.Info(context.Background(), "status repository uses redis", zap.String("addr", cfg.Redis.Addr))
	return repo, func() { _ = redisCache.Close() }, nil
}

func buildHTTPServer(cfg ServerConfig, svc *service.Service, pool *isolate.Pool, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.AccessLogMiddleware())

	controller.NewJudgeController(svc, pool).Register(router)
	router.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
