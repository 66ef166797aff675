package engine

import (
	"context"
	"fmt"
	"time"

	"candle-allocator/internal/data"
	"candle-allocator/internal/execution"
	"candle-allocator/internal/metrics"
	"candle-allocator/internal/model"
	"candle-allocator/internal/service"
	"candle-allocator/internal/strategy"

	"go.uber.org/zap"
)

// CycleResult 一轮 扫描 -> 排名 -> 规划 -> 执行 的结果
type CycleResult struct {
	Scan      *data.ScanResult
	Ranked    []model.OpportunitySnapshot
	Shortlist []model.OpportunitySnapshot
	Plan      *model.AllocationPlan
	Report    *model.ExecutionReport
}

// Engine 串起所有组件，每轮都从外部数据源重新读取
type Engine struct {
	cfg         *service.Config
	instruments data.InstrumentSource
	holdings    data.HoldingsSource
	scanner     *data.Scanner
	planner     *strategy.AllocationPlanner
	runner      *execution.Runner
	metrics     *metrics.Recorder
	logger      *zap.Logger
}

func New(cfg *service.Config, instruments data.InstrumentSource, holdings data.HoldingsSource,
	scanner *data.Scanner, planner *strategy.AllocationPlanner, runner *execution.Runner,
	rec *metrics.Recorder, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		instruments: instruments,
		holdings:    holdings,
		scanner:     scanner,
		planner:     planner,
		runner:      runner,
		metrics:     rec,
		logger:      logger.With(zap.String("component", "engine")),
	}
}

// RunOnce 执行一轮完整流程
func (e *Engine) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := time.Now()

	// 1. 交易对范围
	all, err := e.instruments.ListInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	universe := data.SelectUniverse(all, &e.cfg.Scanner)
	if len(universe) == 0 {
		return nil, fmt.Errorf("no instruments to scan: %w", model.ErrDataUnavailable)
	}

	// 2. 扫描评分
	scan, err := e.scanner.Scan(ctx, universe)
	if err != nil {
		return nil, err
	}
	res := &CycleResult{Scan: scan}
	e.logSummary(scan)

	// 3. 排名和过滤
	stable := e.cfg.Allocation.StableAsset
	res.Ranked = strategy.Rank(scan.Snapshots, e.cfg.Scanner.TopN)
	res.Shortlist = strategy.FilterQualified(strategy.FilterQuote(res.Ranked, stable), e.cfg.Allocation.MinScore)
	e.metrics.RecordQualified(len(res.Shortlist))
	for i, s := range res.Shortlist {
		e.logger.Info("Qualified opportunity",
			zap.Int("Rank", i+1),
			zap.String("Symbol", s.Instrument.Symbol),
			zap.Float64("Score", s.AggregateScore),
			zap.String("Trend", s.Trend.String()),
			zap.Float64("ChangePct", s.PriceChangePct),
			zap.Strings("Patterns", s.DetectedPatterns.Detected()),
			zap.Float64("Volume", s.VolumeWindowSum),
			zap.Bool("IndicatorsReady", s.Indicators.Ready),
			zap.Float64("SMA", s.Indicators.SMA),
			zap.Float64("RSI", s.Indicators.RSI),
			zap.Float64("ATR", s.Indicators.ATR))
	}

	// 4. 规划
	plan, err := e.planner.PlanFrom(ctx, e.holdings, res.Shortlist)
	if err != nil {
		return res, err
	}
	res.Plan = plan
	e.metrics.RecordPlan(string(plan.Strategy))

	// 5. 执行
	res.Report = e.runner.Execute(ctx, plan)
	e.logger.Info("Cycle finished",
		zap.String("PlanID", plan.ID),
		zap.String("Strategy", string(plan.Strategy)),
		zap.Int("Targets", len(plan.Targets)),
		zap.Int("Conversions", len(plan.Conversions)),
		zap.Int("Dust", len(plan.DustConversions)),
		zap.String("NoOpReason", plan.NoOpReason),
		zap.Int("FailedLegs", len(res.Report.Failed())),
		zap.Duration("Took", time.Since(start)))
	return res, nil
}

// Run interval <= 0 时只运行一轮；否则按间隔运行直到 ctx 取消
// 单轮失败只记录日志，下一轮继续
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Run.Interval
	if interval <= 0 {
		_, err := e.RunOnce(ctx)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("Cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) logSummary(scan *data.ScanResult) {
	s := scan.Summary
	e.logger.Info("Scan summary",
		zap.Int("Analysed", scan.Analysed),
		zap.Int("Failed", scan.Failed),
		zap.Int("Positive", s.Positive),
		zap.Int("Strong", s.Strong),
		zap.Int("Moderate", s.Moderate),
		zap.Int("Uptrend", s.Uptrend),
		zap.Int("Downtrend", s.Downtrend),
		zap.Int("Neutral", s.Neutral),
		zap.Float64("AverageScore", s.AverageScore),
		zap.Float64("MaxScore", s.MaxScore))
}
