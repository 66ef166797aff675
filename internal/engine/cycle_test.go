package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"candle-allocator/internal/data"
	"candle-allocator/internal/execution"
	"candle-allocator/internal/executor"
	"candle-allocator/internal/model"
	"candle-allocator/internal/pattern"
	"candle-allocator/internal/service"
	"candle-allocator/internal/strategy"
	"candle-allocator/pkg/ta"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type market struct {
	instruments []model.Instrument
	candles     map[string][]model.Candle
	prices      map[string]float64
}

func (m *market) ListInstruments(context.Context) ([]model.Instrument, error) {
	return m.instruments, nil
}

func (m *market) FetchCandles(_ context.Context, inst model.Instrument, _ string, _ int) (model.CandleWindow, error) {
	cs, ok := m.candles[inst.Symbol]
	if !ok {
		return model.CandleWindow{}, fmt.Errorf("%s: %w", inst.Symbol, model.ErrDataUnavailable)
	}
	return model.NewCandleWindow(cs)
}

func (m *market) FetchLastPrice(_ context.Context, symbol string) (float64, error) {
	p, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, model.ErrDataUnavailable)
	}
	return p, nil
}

func c(ti int, o, h, l, cl float64) model.Candle {
	return model.Candle{OpenTime: time.Unix(int64(ti*14400), 0), Open: o, High: h, Low: l, Close: cl, Volume: 3}
}

func testConfig() *service.Config {
	return &service.Config{
		Scanner: service.ScannerConfig{
			Timeframe: "4h", CandleLimit: 6, Workers: 2, TopN: 10, VolumeCandles: 6,
			QuoteAssets: []string{"USDT"}, Excluded: []string{"USDC/USDT"},
		},
		Allocation: service.AllocationConfig{
			StableAsset: "USDT", MinScore: 1, MaxPositions: 3, DustThreshold: 0.5, MinDiversifyBalance: 10,
			ConversionHaircut: 0.001,
		},
		Simulator: service.SimulatorConfig{
			InitialBalances: map[string]float64{"USDT": 1000},
			FeeRate:         0.001,
			MinNotional:     5,
			QuoteTTL:        time.Minute,
			DustAsset:       "BNB",
		},
	}
}

func newTestEngine(t *testing.T, cfg *service.Config, m *market) (*Engine, *executor.SimulatorExecutor) {
	t.Helper()
	return newTestEngineWithLogger(t, cfg, m, zaptest.NewLogger(t))
}

func newTestEngineWithLogger(t *testing.T, cfg *service.Config, m *market, logger *zap.Logger) (*Engine, *executor.SimulatorExecutor) {
	t.Helper()
	reg, err := pattern.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	agg := strategy.NewScoreAggregator(reg, strategy.NewTrendClassifier(5))
	scanner := data.NewScanner(&cfg.Scanner, m, agg, ta.NewTACalculator(2), nil, logger)
	sim := executor.NewSimulatorExecutor(&cfg.Simulator, cfg.Allocation.StableAsset, m, logger.Sugar())
	planner := strategy.NewAllocationPlanner(&cfg.Allocation, m, logger)
	runner := execution.NewRunner(executor.NewQuoteExecutor(cfg.Allocation.StableAsset, sim, sim, logger), nil, logger)
	return New(cfg, m, sim, scanner, planner, runner, nil, logger), sim
}

func TestRunOnceDiversifies(t *testing.T) {
	m := &market{
		instruments: []model.Instrument{
			model.NewInstrument("AAA", "USDT"),
			model.NewInstrument("BBB", "USDT"),
			model.NewInstrument("USDC", "USDT"),
		},
		candles: map[string][]model.Candle{
			// 最后一根锤子线
			"AAAUSDT": {c(0, 110, 111, 104, 105), c(1, 105, 106, 100, 101), c(2, 101, 101.5, 96, 100.5), c(3, 100, 101.5, 97, 101)},
			"BBBUSDT": {c(0, 50, 50, 50, 50), c(1, 50, 50, 50, 50), c(2, 50, 50, 50, 50)},
		},
		prices: map[string]float64{"AAAUSDT": 101},
	}
	eng, sim := newTestEngine(t, testConfig(), m)

	res, err := eng.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Scan.Analysed != 2 || len(res.Shortlist) != 1 {
		t.Fatalf("analysed = %d, shortlist = %d", res.Scan.Analysed, len(res.Shortlist))
	}
	if res.Plan.Strategy != model.StrategyDiversify || math.Abs(res.Plan.Targets["AAAUSDT"]-1000) > 1e-9 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if len(res.Report.Failed()) != 0 {
		t.Fatalf("failed legs = %+v", res.Report.Failed())
	}
	if sim.Balance("USDT").GreaterThan(decimal.New(1, -6)) || !sim.Balance("AAA").IsPositive() {
		t.Fatalf("balances USDT=%s AAA=%s", sim.Balance("USDT"), sim.Balance("AAA"))
	}
}

func hammerMarket() *market {
	return &market{
		instruments: []model.Instrument{model.NewInstrument("AAA", "USDT")},
		candles: map[string][]model.Candle{
			"AAAUSDT": {c(0, 110, 111, 104, 105), c(1, 105, 106, 100, 101), c(2, 101, 101.5, 96, 100.5), c(3, 100, 101.5, 97, 101)},
		},
		prices: map[string]float64{"AAAUSDT": 101, "ETHUSDT": 2000},
	}
}

func TestRunOnceDiversifiesAfterConvertingHoldings(t *testing.T) {
	cfg := testConfig()
	cfg.Simulator.InitialBalances = map[string]float64{"USDT": 1000, "ETH": 1}
	eng, sim := newTestEngine(t, cfg, hammerMarket())

	res, err := eng.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// ETH 兑换所得 2000 * 0.999
	if res.Plan.Strategy != model.StrategyDiversify || math.Abs(res.Plan.Targets["AAAUSDT"]-2998) > 1e-9 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if failed := res.Report.Failed(); len(failed) != 0 {
		t.Fatalf("failed legs = %+v", failed)
	}
	if !sim.Balance("ETH").IsZero() || sim.Balance("USDT").GreaterThan(decimal.New(1, -6)) || !sim.Balance("AAA").IsPositive() {
		t.Fatalf("balances ETH=%s USDT=%s AAA=%s", sim.Balance("ETH"), sim.Balance("USDT"), sim.Balance("AAA"))
	}
}

func TestRunOnceLogsIndicators(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	eng, _ := newTestEngineWithLogger(t, testConfig(), hammerMarket(), zap.New(core))

	if _, err := eng.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("Qualified opportunity").All()
	if len(entries) != 1 {
		t.Fatalf("qualified log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["Symbol"] != "AAAUSDT" || fields["IndicatorsReady"] != true {
		t.Fatalf("fields = %v", fields)
	}
	// SMA(2) 取最后两根收盘价 100.5 和 101
	if sma, _ := fields["SMA"].(float64); math.Abs(sma-100.75) > 1e-9 {
		t.Fatalf("SMA = %v, want 100.75", fields["SMA"])
	}
	for _, key := range []string{"RSI", "ATR"} {
		if _, ok := fields[key].(float64); !ok {
			t.Fatalf("%s missing from %v", key, fields)
		}
	}
}

func TestRunOnceConsolidatesWithoutOpportunities(t *testing.T) {
	m := &market{
		instruments: []model.Instrument{model.NewInstrument("BBB", "USDT")},
		candles: map[string][]model.Candle{
			"BBBUSDT": {c(0, 50, 50, 50, 50), c(1, 50, 50, 50, 50), c(2, 50, 50, 50, 50)},
		},
		prices: map[string]float64{"ETHUSDT": 2000},
	}
	cfg := testConfig()
	cfg.Simulator.InitialBalances = map[string]float64{"USDT": 10, "ETH": 1}
	eng, sim := newTestEngine(t, cfg, m)

	res, err := eng.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Plan.Strategy != model.StrategyConsolidateToStable || len(res.Plan.Targets) != 0 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if !sim.Balance("ETH").IsZero() {
		t.Fatalf("ETH not converted: %s", sim.Balance("ETH"))
	}
}

func TestRunOnceEmptyUniverse(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig(), &market{})
	if _, err := eng.RunOnce(context.Background()); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
