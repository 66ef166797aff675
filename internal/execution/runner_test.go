package execution

import (
	"context"
	"errors"
	"testing"

	"candle-allocator/internal/model"

	"go.uber.org/zap/zaptest"
)

type call struct {
	kind   string
	target string
}

type recordingExecutor struct {
	calls []call
	fail  map[string]error
}

func (e *recordingExecutor) ConvertToStable(_ context.Context, asset string, _ float64) error {
	e.calls = append(e.calls, call{"convert", asset})
	return e.fail[asset]
}

func (e *recordingExecutor) BuyWithStable(_ context.Context, inst model.Instrument, _ float64) error {
	e.calls = append(e.calls, call{"buy", inst.Symbol})
	return e.fail[inst.Symbol]
}

func (e *recordingExecutor) ConvertDust(_ context.Context, assets []string) error {
	e.calls = append(e.calls, call{"dust", assets[0]})
	return nil
}

func testPlan() *model.AllocationPlan {
	return &model.AllocationPlan{
		ID:       "plan-1",
		Strategy: model.StrategyDiversify,
		Conversions: []model.Conversion{
			{Asset: "ETH", Amount: 1, EstimatedValue: 2000, Valued: true},
			{Asset: "XRP", Amount: 100, EstimatedValue: 50, Valued: true},
		},
		DustConversions: []model.Conversion{{Asset: "SHIB", Amount: 1000, EstimatedValue: 0.1, Valued: true}},
		Allocations: []model.Allocation{
			{Instrument: model.NewInstrument("BTC", "USDT"), Score: 60, Amount: 600},
			{Instrument: model.NewInstrument("SOL", "USDT"), Score: 40, Amount: 400},
		},
	}
}

func TestExecuteContinuesPastFailedLeg(t *testing.T) {
	boom := errors.New("exchange rejected")
	exec := &recordingExecutor{fail: map[string]error{"XRP": boom}}
	report := NewRunner(exec, nil, zaptest.NewLogger(t)).Execute(context.Background(), testPlan())

	wantOrder := []call{{"convert", "ETH"}, {"convert", "XRP"}, {"dust", "SHIB"}, {"buy", "BTCUSDT"}, {"buy", "SOLUSDT"}}
	if len(exec.calls) != len(wantOrder) {
		t.Fatalf("calls = %v", exec.calls)
	}
	for i, c := range wantOrder {
		if exec.calls[i] != c {
			t.Fatalf("call %d = %v, want %v", i, exec.calls[i], c)
		}
	}

	failed := report.Failed()
	if len(failed) != 1 || failed[0].Target != "XRP" {
		t.Fatalf("failed = %+v", failed)
	}
	if !errors.Is(failed[0].Err, model.ErrExecutionLegFailed) || !errors.Is(failed[0].Err, boom) {
		t.Fatalf("leg err = %v", failed[0].Err)
	}
	var legErr *model.LegError
	if !errors.As(failed[0].Err, &legErr) || legErr.Kind != model.LegConvert {
		t.Fatalf("leg err type = %T", failed[0].Err)
	}
	if report.PlanID != "plan-1" || len(report.Legs) != 5 {
		t.Fatalf("report = %s", report)
	}
}

func TestExecuteCancelledRecordsRemainingLegs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &recordingExecutor{}
	report := NewRunner(exec, nil, zaptest.NewLogger(t)).Execute(ctx, testPlan())
	if len(exec.calls) != 0 {
		t.Fatalf("calls after cancel = %v", exec.calls)
	}
	if len(report.Failed()) != 5 {
		t.Fatalf("failed = %d, want 5", len(report.Failed()))
	}
}

func TestExecuteEmptyPlan(t *testing.T) {
	report := NewRunner(&recordingExecutor{}, nil, zaptest.NewLogger(t)).Execute(context.Background(), &model.AllocationPlan{ID: "noop"})
	if len(report.Legs) != 0 {
		t.Fatalf("legs = %d", len(report.Legs))
	}
}
