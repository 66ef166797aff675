package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candle-allocator/internal/api"
	"candle-allocator/internal/data"
	"candle-allocator/internal/engine"
	"candle-allocator/internal/execution"
	"candle-allocator/internal/executor"
	"candle-allocator/internal/metrics"
	"candle-allocator/internal/pattern"
	"candle-allocator/internal/service"
	"candle-allocator/internal/strategy"
	"candle-allocator/pkg/ta"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// websocket 价格超过该时间未更新时改用 REST
const livePriceMaxAge = 2 * time.Minute

func main() {
	service.InitLogger(os.Getenv("ALLOC_LOG_LEVEL"))
	defer service.Logger.Sync()
	logger := service.Logger

	configPath := "config"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Warn("Configuration directory 'config/' not found, using defaults")
	}
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// 形态目录注册失败 (例如重名) 直接退出
	registry, err := pattern.DefaultRegistry()
	if err != nil {
		logger.Fatal("Failed to build pattern registry", zap.Error(err))
	}
	logger.Info("Pattern registry ready",
		zap.Int("Patterns", registry.Count()),
		zap.Int("RequiredWindow", registry.RequiredWindow()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	// 2. 行情：REST 拉 K 线，websocket 维护最新价
	rest := api.NewRestClient(&cfg.Exchange, logger)
	connector := api.NewConnector(cfg.Exchange.WSURL, logger)
	go connector.Start(ctx)
	priceBook := data.NewPriceBook(connector.GetTickerChannel(), nil, livePriceMaxAge, rest, rec, logger)
	go priceBook.Start(ctx)

	// 3. 评分与规划
	classifier := strategy.NewTrendClassifier(cfg.Scanner.TrendPeriods)
	aggregator := strategy.NewScoreAggregator(registry, classifier)
	scanner := data.NewScanner(&cfg.Scanner, rest, aggregator, ta.NewTACalculator(cfg.Indicators.Period), rec, logger)
	planner := strategy.NewAllocationPlanner(&cfg.Allocation, priceBook, logger)

	// 4. 钱包与执行器
	wallet := executor.NewSimulatorExecutor(&cfg.Simulator, cfg.Allocation.StableAsset, priceBook, logger.Sugar())
	var exec executor.Executor
	if cfg.Trading.Enabled && cfg.Trading.Mode == "simulator" {
		exec = executor.NewQuoteExecutor(cfg.Allocation.StableAsset, wallet, wallet, logger)
		logger.Info("Trading enabled on paper wallet")
	} else {
		exec = executor.NewDryRunExecutor(cfg.Allocation.StableAsset, logger)
		logger.Info("Trading disabled, plans are logged only")
	}
	runner := execution.NewRunner(exec, rec, logger)

	eng := engine.New(cfg, rest, wallet, scanner, planner, runner, rec, logger)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Engine stopped with error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics endpoint listening", zap.String("Addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}
