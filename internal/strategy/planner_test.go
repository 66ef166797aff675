package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"candle-allocator/internal/model"
	"candle-allocator/internal/service"

	"go.uber.org/zap/zaptest"
)

type priceMap map[string]float64

func (p priceMap) FetchLastPrice(_ context.Context, symbol string) (float64, error) {
	price, ok := p[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s: %w", symbol, model.ErrDataUnavailable)
	}
	return price, nil
}

type holdingsFunc func(ctx context.Context) ([]model.Holding, error)

func (f holdingsFunc) FetchHoldings(ctx context.Context) ([]model.Holding, error) { return f(ctx) }

func testAllocationConfig() *service.AllocationConfig {
	return &service.AllocationConfig{
		StableAsset:         "USDT",
		MinScore:            35,
		MaxPositions:        3,
		DustThreshold:       0.5,
		MinDiversifyBalance: 10,
	}
}

func newTestPlanner(t *testing.T, prices priceMap) *AllocationPlanner {
	return NewAllocationPlanner(testAllocationConfig(), prices, zaptest.NewLogger(t))
}

func stable(amount float64) model.Holding {
	return model.Holding{Asset: "USDT", Total: amount, Free: amount}
}

func TestPlanSplitsByScore(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	shortlist := []model.OpportunitySnapshot{
		snap("AAA", 60, model.TrendUp, 1),
		snap("BBB", 30, model.TrendUp, 1),
		snap("CCC", 10, model.TrendNeutral, 1),
	}
	plan, err := planner.Plan(context.Background(), []model.Holding{stable(1000)}, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Strategy != model.StrategyDiversify {
		t.Fatalf("strategy = %s", plan.Strategy)
	}
	want := map[string]float64{"AAAUSDT": 600, "BBBUSDT": 300, "CCCUSDT": 100}
	for symbol, amount := range want {
		if !approx(plan.Targets[symbol], amount) {
			t.Errorf("target %s = %v, want %v", symbol, plan.Targets[symbol], amount)
		}
	}
	if !approx(plan.TargetSum(), plan.AvailableStable) {
		t.Fatalf("targets sum %v != available %v", plan.TargetSum(), plan.AvailableStable)
	}
	if plan.ID == "" {
		t.Fatal("plan has no id")
	}
}

func TestPlanCapsAtMaxPositions(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	shortlist := []model.OpportunitySnapshot{
		snap("A", 50, model.TrendUp, 1),
		snap("B", 40, model.TrendUp, 1),
		snap("C", 30, model.TrendUp, 1),
		snap("D", 20, model.TrendUp, 1),
	}
	plan, err := planner.Plan(context.Background(), []model.Holding{stable(120)}, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Allocations) != 3 {
		t.Fatalf("allocations = %d, want 3", len(plan.Allocations))
	}
	if _, ok := plan.Targets["DUSDT"]; ok {
		t.Fatal("fourth instrument allocated")
	}
	if !approx(plan.Targets["AUSDT"], 50) {
		t.Fatalf("A target = %v, want 50", plan.Targets["AUSDT"])
	}
}

func TestPlanEmptyShortlistConsolidates(t *testing.T) {
	planner := newTestPlanner(t, priceMap{"ETHUSDT": 2000, "SHIBUSDT": 0.0001})
	holdings := []model.Holding{
		stable(50),
		{Asset: "ETH", Total: 2, Free: 1.5, Locked: 0.5},
		{Asset: "SHIB", Total: 1000, Free: 1000},
	}
	plan, err := planner.Plan(context.Background(), holdings, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Strategy != model.StrategyConsolidateToStable {
		t.Fatalf("strategy = %s", plan.Strategy)
	}
	if len(plan.Targets) != 0 {
		t.Fatalf("targets = %v, want empty", plan.Targets)
	}
	if len(plan.Conversions) != 1 || plan.Conversions[0].Asset != "ETH" || plan.Conversions[0].Amount != 1.5 {
		t.Fatalf("conversions = %+v", plan.Conversions)
	}
	if len(plan.DustConversions) != 1 || plan.DustConversions[0].Asset != "SHIB" {
		t.Fatalf("dust = %+v", plan.DustConversions)
	}
	if !approx(plan.TotalStableValue, 50+4000+0.1) {
		t.Fatalf("total value = %v", plan.TotalStableValue)
	}
}

func TestPlanKeepsTopAssets(t *testing.T) {
	planner := newTestPlanner(t, priceMap{"AAAUSDT": 10, "ZZZUSDT": 5})
	holdings := []model.Holding{
		stable(100),
		{Asset: "AAA", Total: 3, Free: 3},
		{Asset: "ZZZ", Total: 4, Free: 4},
	}
	shortlist := []model.OpportunitySnapshot{snap("AAA", 50, model.TrendUp, 1)}
	plan, err := planner.Plan(context.Background(), holdings, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Keep) != 1 || plan.Keep[0] != "AAA" {
		t.Fatalf("keep = %v", plan.Keep)
	}
	if len(plan.Conversions) != 1 || plan.Conversions[0].Asset != "ZZZ" {
		t.Fatalf("conversions = %+v", plan.Conversions)
	}
	// 100 USDT + 20 预计兑换所得
	if !approx(plan.AvailableStable, 120) || !approx(plan.Targets["AAAUSDT"], 120) {
		t.Fatalf("available = %v, target = %v", plan.AvailableStable, plan.Targets["AAAUSDT"])
	}
}

func TestPlanUnvaluedHolding(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	holdings := []model.Holding{stable(100), {Asset: "XYZ", Total: 7, Free: 7}}
	plan, err := planner.Plan(context.Background(), holdings, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Unvalued) != 1 || plan.Unvalued[0] != "XYZ" {
		t.Fatalf("unvalued = %v", plan.Unvalued)
	}
	if len(plan.Conversions) != 1 || plan.Conversions[0].Valued {
		t.Fatalf("conversions = %+v", plan.Conversions)
	}
	if plan.TotalStableValue != 100 {
		t.Fatalf("total value = %v, want 100", plan.TotalStableValue)
	}
}

func TestPlanShortfall(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	shortlist := []model.OpportunitySnapshot{snap("AAA", 50, model.TrendUp, 1)}
	plan, err := planner.Plan(context.Background(), []model.Holding{stable(4)}, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Strategy != model.StrategyDiversify {
		t.Fatalf("strategy = %s", plan.Strategy)
	}
	if len(plan.Targets) != 0 {
		t.Fatalf("targets = %v, want empty", plan.Targets)
	}
	if !approx(plan.Shortfall, 6) || plan.NoOpReason == "" {
		t.Fatalf("shortfall = %v, reason = %q", plan.Shortfall, plan.NoOpReason)
	}
}

func TestPlanFromAbortsWhenHoldingsUnreadable(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	boom := errors.New("wallet offline")
	_, err := planner.PlanFrom(context.Background(), holdingsFunc(func(context.Context) ([]model.Holding, error) {
		return nil, boom
	}), nil)
	if !errors.Is(err, model.ErrPlanningAborted) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPlanZeroTotalScoreIsNoOp(t *testing.T) {
	planner := newTestPlanner(t, priceMap{})
	shortlist := []model.OpportunitySnapshot{
		snap("AAA", 0, model.TrendUp, 1),
		snap("BBB", 0, model.TrendNeutral, 1),
	}
	plan, err := planner.Plan(context.Background(), []model.Holding{stable(100)}, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Strategy != model.StrategyDiversify {
		t.Fatalf("strategy = %s", plan.Strategy)
	}
	if len(plan.Targets) != 0 || len(plan.Allocations) != 0 {
		t.Fatalf("targets = %v, want empty", plan.Targets)
	}
	if plan.NoOpReason == "" || plan.Shortfall != 0 {
		t.Fatalf("reason = %q, shortfall = %v", plan.NoOpReason, plan.Shortfall)
	}
}

func TestPlanDiversifyWithDust(t *testing.T) {
	cfg := testAllocationConfig()
	cfg.ConversionHaircut = 0.001
	planner := NewAllocationPlanner(cfg, priceMap{"ETHUSDT": 2000, "SHIBUSDT": 0.0001}, zaptest.NewLogger(t))
	holdings := []model.Holding{
		stable(100),
		{Asset: "ETH", Total: 0.01, Free: 0.01},
		{Asset: "SHIB", Total: 1000, Free: 1000},
	}
	shortlist := []model.OpportunitySnapshot{snap("AAA", 50, model.TrendUp, 1)}
	plan, err := planner.Plan(context.Background(), holdings, shortlist)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Strategy != model.StrategyDiversify {
		t.Fatalf("strategy = %s", plan.Strategy)
	}
	if len(plan.DustConversions) != 1 || plan.DustConversions[0].Asset != "SHIB" {
		t.Fatalf("dust = %+v", plan.DustConversions)
	}
	if len(plan.Conversions) != 1 || plan.Conversions[0].Asset != "ETH" || !approx(plan.Conversions[0].EstimatedValue, 20) {
		t.Fatalf("conversions = %+v", plan.Conversions)
	}
	// dust 所得不计入可用余额，ETH 所得扣除 0.1%
	if !approx(plan.AvailableStable, 119.98) || !approx(plan.Targets["AAAUSDT"], 119.98) {
		t.Fatalf("available = %v, target = %v", plan.AvailableStable, plan.Targets["AAAUSDT"])
	}
}
