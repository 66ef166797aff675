package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"candle-allocator/internal/metrics"
	"candle-allocator/internal/model"
	"candle-allocator/internal/service"
	"candle-allocator/internal/strategy"
	"candle-allocator/pkg/ta"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultVolumeCandles = 6

// ScanResult 一轮扫描的结果
type ScanResult struct {
	Snapshots []model.OpportunitySnapshot // 得分 > 0，按输入顺序
	Analysed  int
	Failed    int
	Skipped   int // 数据不可用
	Summary   strategy.Summary
}

// Scanner 在有界 worker 池中逐个交易对评分
type Scanner struct {
	cfg        *service.ScannerConfig
	candles    CandleSource
	aggregator *strategy.ScoreAggregator
	taClient   *ta.TACalculator
	metrics    *metrics.Recorder
	logger     *zap.Logger
}

// NewScanner 初始化扫描器
func NewScanner(cfg *service.ScannerConfig, candles CandleSource, aggregator *strategy.ScoreAggregator,
	taClient *ta.TACalculator, rec *metrics.Recorder, logger *zap.Logger) *Scanner {
	return &Scanner{
		cfg:        cfg,
		candles:    candles,
		aggregator: aggregator,
		taClient:   taClient,
		metrics:    rec,
		logger:     logger.With(zap.String("component", "scanner")),
	}
}

type scanOutcome struct {
	snapshot model.OpportunitySnapshot
	scored   bool
	skipped  bool
	failed   bool
}

// Scan 评估全部交易对。单个交易对失败 (包括 panic) 只计数，不影响其它交易对
// 结果顺序与输入顺序一致，与完成顺序无关
func (s *Scanner) Scan(ctx context.Context, instruments []model.Instrument) (*ScanResult, error) {
	start := time.Now()
	outcomes := make([]scanOutcome, len(instruments))

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for i, inst := range instruments {
		g.Go(func() error {
			outcomes[i] = s.evaluate(gctx, inst)
			if n := done.Add(1); n%50 == 0 {
				s.logger.Debug("Scan progress", zap.Int64("Done", n), zap.Int("Total", len(instruments)))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	res := &ScanResult{}
	for _, o := range outcomes {
		switch {
		case o.failed:
			res.Failed++
		case o.skipped:
			res.Skipped++
		default:
			res.Analysed++
			if o.scored {
				res.Snapshots = append(res.Snapshots, o.snapshot)
			}
		}
	}
	res.Summary = strategy.Summarize(res.Snapshots)

	s.metrics.RecordLatency("scan", time.Since(start).Seconds())
	s.logger.Info("Scan finished",
		zap.Int("Instruments", len(instruments)),
		zap.Int("Analysed", res.Analysed),
		zap.Int("Scored", len(res.Snapshots)),
		zap.Int("Skipped", res.Skipped),
		zap.Int("Failed", res.Failed),
		zap.Duration("Took", time.Since(start)))
	return res, nil
}

func (s *Scanner) evaluate(ctx context.Context, inst model.Instrument) (out scanOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while evaluating instrument", zap.String("Symbol", inst.Symbol), zap.Any("Panic", r))
			s.metrics.RecordScan("failed")
			out = scanOutcome{failed: true}
		}
	}()

	window, err := s.candles.FetchCandles(ctx, inst, s.cfg.Timeframe, s.cfg.CandleLimit)
	if err != nil {
		if errors.Is(err, model.ErrDataUnavailable) {
			s.logger.Debug("Skipping instrument, no data", zap.String("Symbol", inst.Symbol), zap.Error(err))
			s.metrics.RecordScan("skipped")
			return scanOutcome{skipped: true}
		}
		s.logger.Warn("Failed to fetch candles", zap.String("Symbol", inst.Symbol), zap.Error(err))
		s.metrics.RecordScan("failed")
		return scanOutcome{failed: true}
	}

	analysis := s.aggregator.Analyze(window)
	s.metrics.RecordScore(analysis.Score)
	if analysis.Score <= 0 {
		s.metrics.RecordScan("zero")
		return scanOutcome{}
	}
	s.metrics.RecordScan("scored")

	volumeCandles := s.cfg.VolumeCandles
	if volumeCandles <= 0 {
		volumeCandles = defaultVolumeCandles
	}
	snap := model.OpportunitySnapshot{
		Instrument:       inst,
		AggregateScore:   analysis.Score,
		Trend:            analysis.Trend,
		CurrentPrice:     window.Last().Close,
		VolumeWindowSum:  window.VolumeSum(volumeCandles),
		PriceChangePct:   analysis.PriceChangePct,
		DetectedPatterns: analysis.Patterns,
		EvaluatedAt:      time.Now(),
	}
	if s.taClient != nil {
		snap.Indicators = s.taClient.Calculate(window)
	}
	return scanOutcome{snapshot: snap, scored: true}
}

// SelectUniverse 按计价资产、排除列表和白名单筛选交易对，保持输入顺序
func SelectUniverse(all []model.Instrument, cfg *service.ScannerConfig) []model.Instrument {
	quotes := toSet(cfg.QuoteAssets)
	excluded := toSet(cfg.Excluded)
	only := toSet(cfg.Symbols)

	out := make([]model.Instrument, 0, len(all))
	for _, inst := range all {
		key := strings.ToUpper(inst.String())
		if len(only) > 0 && !only[key] {
			continue
		}
		if len(quotes) > 0 && !quotes[strings.ToUpper(inst.Quote)] {
			continue
		}
		if excluded[key] {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToUpper(strings.TrimSpace(it))] = true
	}
	return set
}
