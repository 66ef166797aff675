package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"candle-allocator/internal/model"
	"candle-allocator/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

type prices map[string]float64

func (p prices) FetchLastPrice(_ context.Context, symbol string) (float64, error) {
	v, ok := p[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, model.ErrDataUnavailable)
	}
	return v, nil
}

func newTestSimulator(t *testing.T) *SimulatorExecutor {
	t.Helper()
	cfg := &service.SimulatorConfig{
		InitialBalances: map[string]float64{"USDT": 1000, "SHIB": 10000},
		FeeRate:         0.001,
		MinNotional:     5,
		QuoteTTL:        10 * time.Second,
		DustAsset:       "BNB",
	}
	px := prices{"BTCUSDT": 50000, "BNBUSDT": 500, "SHIBUSDT": 0.00001}
	return NewSimulatorExecutor(cfg, "USDT", px, zaptest.NewLogger(t).Sugar())
}

func TestQuoteExecutorBuyAndSell(t *testing.T) {
	sim := newTestSimulator(t)
	ex := NewQuoteExecutor("USDT", sim, sim, zaptest.NewLogger(t))
	ctx := context.Background()

	if err := ex.BuyWithStable(ctx, model.NewInstrument("BTC", "USDT"), 500); err != nil {
		t.Fatal(err)
	}
	if got := sim.Balance("USDT"); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("USDT = %s, want 500", got)
	}
	if got := sim.Balance("BTC"); !got.Equal(decimal.RequireFromString("0.00999")) {
		t.Fatalf("BTC = %s, want 0.00999", got)
	}

	if err := ex.ConvertToStable(ctx, "BTC", 0.00999); err != nil {
		t.Fatal(err)
	}
	if got := sim.Balance("BTC"); !got.IsZero() {
		t.Fatalf("BTC = %s, want 0", got)
	}
	// 499.5 * 0.999
	if got := sim.Balance("USDT"); !got.Equal(decimal.RequireFromString("999.0005")) {
		t.Fatalf("USDT = %s, want 999.0005", got)
	}
	if n := len(sim.Fills()); n != 2 {
		t.Fatalf("fills = %d, want 2", n)
	}
}

func TestQuoteRejectsBelowMinNotional(t *testing.T) {
	sim := newTestSimulator(t)
	ex := NewQuoteExecutor("USDT", sim, sim, zaptest.NewLogger(t))
	err := ex.ConvertToStable(context.Background(), "SHIB", 10000)
	if !errors.Is(err, ErrBelowMinNotional) {
		t.Fatalf("err = %v, want ErrBelowMinNotional", err)
	}
}

func TestQuoteRejectsInsufficientBalance(t *testing.T) {
	sim := newTestSimulator(t)
	_, err := sim.RequestQuote(context.Background(), "USDT", "BTC", 2000)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestQuoteExpires(t *testing.T) {
	sim := newTestSimulator(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim.now = func() time.Time { return now }

	q, err := sim.RequestQuote(context.Background(), "USDT", "BTC", 100)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(11 * time.Second)
	status, err := sim.AcceptQuote(context.Background(), q.ID)
	if err != nil || status != OrderExpired {
		t.Fatalf("status = %s, err = %v", status, err)
	}
	if got := sim.Balance("USDT"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("USDT = %s, want untouched 1000", got)
	}
	if _, err := sim.AcceptQuote(context.Background(), q.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("second accept err = %v", err)
	}
}

func TestConvertDust(t *testing.T) {
	sim := newTestSimulator(t)
	if err := sim.ConvertDust(context.Background(), []string{"SHIB"}); err != nil {
		t.Fatal(err)
	}
	if got := sim.Balance("SHIB"); !got.IsZero() {
		t.Fatalf("SHIB = %s, want 0", got)
	}
	// 0.1 USDT / 500 * 0.999
	if got := sim.Balance("BNB"); !got.Equal(decimal.RequireFromString("0.0001998")) {
		t.Fatalf("BNB = %s, want 0.0001998", got)
	}
}

func TestConvertDustIsAllOrNothing(t *testing.T) {
	sim := newTestSimulator(t)
	err := sim.ConvertDust(context.Background(), []string{"SHIB", "UNKNOWN"})
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if got := sim.Balance("SHIB"); !got.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("SHIB = %s, want untouched", got)
	}
}

func TestFetchHoldingsSorted(t *testing.T) {
	sim := newTestSimulator(t)
	hs, err := sim.FetchHoldings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 || hs[0].Asset != "SHIB" || hs[1].Asset != "USDT" || hs[1].Free != 1000 {
		t.Fatalf("holdings = %+v", hs)
	}
}

func TestDryRunNeverFails(t *testing.T) {
	ex := NewDryRunExecutor("USDT", zaptest.NewLogger(t))
	ctx := context.Background()
	if err := ex.ConvertToStable(ctx, "ETH", 1); err != nil {
		t.Fatal(err)
	}
	if err := ex.BuyWithStable(ctx, model.NewInstrument("BTC", "USDT"), 100); err != nil {
		t.Fatal(err)
	}
	if err := ex.ConvertDust(ctx, []string{"SHIB"}); err != nil {
		t.Fatal(err)
	}
}
