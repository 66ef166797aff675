package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"candle-allocator/internal/model"
	"candle-allocator/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinNotional    = errors.New("below minimum notional")
	ErrQuoteNotFound       = errors.New("quote not found")
)

var balanceTolerance = decimal.New(1, -9)

// PriceLookup 模拟成交使用的最新价
type PriceLookup interface {
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)
}

// Fill 一笔已成交的兑换记录
type Fill struct {
	QuoteID    string
	FromAsset  string
	ToAsset    string
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	Fee        decimal.Decimal // 以 ToAsset 计
	Dust       bool
	FilledAt   time.Time
}

// SimulatorExecutor 模拟钱包：持仓查询、询价兑换、小额兑换
// 实现 Converter / DustConverter / data.HoldingsSource
type SimulatorExecutor struct {
	cfg         *service.SimulatorConfig
	stableAsset string
	prices      PriceLookup
	logger      *zap.SugaredLogger

	mu sync.Mutex // 保护账户状态

	balances map[string]decimal.Decimal
	quotes   map[string]Quote
	fills    []Fill

	now func() time.Time
}

// NewSimulatorExecutor 初始余额来自配置
func NewSimulatorExecutor(cfg *service.SimulatorConfig, stableAsset string, prices PriceLookup, logger *zap.SugaredLogger) *SimulatorExecutor {
	balances := make(map[string]decimal.Decimal, len(cfg.InitialBalances))
	for asset, amount := range cfg.InitialBalances {
		// viper 会把 map 的 key 转成小写
		if amount > 0 {
			balances[strings.ToUpper(asset)] = decimal.NewFromFloat(amount)
		}
	}
	return &SimulatorExecutor{
		cfg:         cfg,
		stableAsset: stableAsset,
		prices:      prices,
		logger:      logger,
		balances:    balances,
		quotes:      make(map[string]Quote),
		now:         time.Now,
	}
}

// FetchHoldings 返回非零余额，按资产名排序
func (e *SimulatorExecutor) FetchHoldings(_ context.Context) ([]model.Holding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Holding, 0, len(e.balances))
	for asset, bal := range e.balances {
		if !bal.IsPositive() {
			continue
		}
		f := bal.InexactFloat64()
		out = append(out, model.Holding{Asset: asset, Total: f, Free: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

// Balance 当前余额
func (e *SimulatorExecutor) Balance(asset string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[asset]
}

// Fills 成交记录副本
func (e *SimulatorExecutor) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

// stablePrice 资产以稳定币计的价格
func (e *SimulatorExecutor) stablePrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if asset == e.stableAsset {
		return decimal.NewFromInt(1), nil
	}
	symbol := model.NewInstrument(asset, e.stableAsset).Symbol
	p, err := e.prices.FetchLastPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %w", symbol, err)
	}
	if p <= 0 {
		return decimal.Zero, fmt.Errorf("price %s: non-positive %v", symbol, p)
	}
	return decimal.NewFromFloat(p), nil
}

func (e *SimulatorExecutor) feeFactor() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(e.cfg.FeeRate))
}

// RequestQuote 以最新价报价，扣除手续费后给出可得数量
func (e *SimulatorExecutor) RequestQuote(ctx context.Context, from, to string, amount float64) (Quote, error) {
	if from == to {
		return Quote{}, fmt.Errorf("quote %s -> %s: same asset", from, to)
	}
	fromAmount := decimal.NewFromFloat(amount)
	if !fromAmount.IsPositive() {
		return Quote{}, fmt.Errorf("quote %s -> %s: amount must be positive", from, to)
	}

	e.mu.Lock()
	bal := e.balances[from]
	e.mu.Unlock()
	// float 往返产生的舍入误差按全部余额处理
	if bal.LessThan(fromAmount) && fromAmount.Sub(bal).LessThanOrEqual(bal.Mul(balanceTolerance)) {
		fromAmount = bal
	}
	if bal.LessThan(fromAmount) {
		return Quote{}, fmt.Errorf("quote %s -> %s: have %s, need %s: %w", from, to, bal, fromAmount, ErrInsufficientBalance)
	}

	fromPrice, err := e.stablePrice(ctx, from)
	if err != nil {
		return Quote{}, err
	}
	toPrice, err := e.stablePrice(ctx, to)
	if err != nil {
		return Quote{}, err
	}

	notional := fromAmount.Mul(fromPrice)
	if notional.LessThan(decimal.NewFromFloat(e.cfg.MinNotional)) {
		return Quote{}, fmt.Errorf("quote %s -> %s: notional %s %s: %w",
			from, to, notional.StringFixed(4), e.stableAsset, ErrBelowMinNotional)
	}

	toAmount := notional.Div(toPrice).Mul(e.feeFactor())
	now := e.now()
	q := Quote{
		ID:         uuid.NewString(),
		FromAsset:  from,
		ToAsset:    to,
		FromAmount: fromAmount,
		ToAmount:   toAmount,
		Ratio:      toAmount.Div(fromAmount),
	}
	if e.cfg.QuoteTTL > 0 {
		q.ExpiresAt = now.Add(e.cfg.QuoteTTL)
	}

	e.mu.Lock()
	e.quotes[q.ID] = q
	e.mu.Unlock()

	e.logger.Debugf("Sim QUOTE %s: %s %s -> %s %s (ratio %s)",
		q.ID, fromAmount, from, toAmount.StringFixed(8), to, q.Ratio.StringFixed(8))
	return q, nil
}

// AcceptQuote 成交报价；过期返回 OrderExpired，余额变化导致不足返回 OrderFailed
func (e *SimulatorExecutor) AcceptQuote(_ context.Context, quoteID string) (OrderStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.quotes[quoteID]
	if !ok {
		return OrderFailed, fmt.Errorf("accept %s: %w", quoteID, ErrQuoteNotFound)
	}
	delete(e.quotes, quoteID)

	now := e.now()
	if q.Expired(now) {
		e.logger.Infof("Sim Rejected: quote %s expired at %s", q.ID, q.ExpiresAt.Format(time.RFC3339))
		return OrderExpired, nil
	}
	if e.balances[q.FromAsset].LessThan(q.FromAmount) {
		e.logger.Infof("Sim Rejected: Insufficient %s. Need: %s, Have: %s", q.FromAsset, q.FromAmount, e.balances[q.FromAsset])
		return OrderFailed, fmt.Errorf("accept %s: %w", quoteID, ErrInsufficientBalance)
	}

	e.debit(q.FromAsset, q.FromAmount)
	e.balances[q.ToAsset] = e.balances[q.ToAsset].Add(q.ToAmount)

	gross := q.ToAmount.Div(e.feeFactor())
	e.fills = append(e.fills, Fill{
		QuoteID:    q.ID,
		FromAsset:  q.FromAsset,
		ToAsset:    q.ToAsset,
		FromAmount: q.FromAmount,
		ToAmount:   q.ToAmount,
		Fee:        gross.Sub(q.ToAmount),
		FilledAt:   now,
	})

	e.logger.Infof("Sim ORDER FILLED: %s %s -> %s %s. New %s balance: %s",
		q.FromAmount, q.FromAsset, q.ToAmount.StringFixed(8), q.ToAsset, q.ToAsset, e.balances[q.ToAsset].StringFixed(8))
	return OrderSuccess, nil
}

// ConvertDust 把所有给定资产的全部余额换成 DustAsset，任一资产无法估值则整体失败
func (e *SimulatorExecutor) ConvertDust(ctx context.Context, assets []string) error {
	if len(assets) == 0 {
		return nil
	}
	target := e.cfg.DustAsset
	targetPrice, err := e.stablePrice(ctx, target)
	if err != nil {
		return fmt.Errorf("dust target %s: %w", target, err)
	}

	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		if asset == target || asset == e.stableAsset {
			return fmt.Errorf("dust: %s cannot be converted to %s", asset, target)
		}
		p, err := e.stablePrice(ctx, asset)
		if err != nil {
			return fmt.Errorf("dust %s: %w", asset, err)
		}
		prices[asset] = p
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, asset := range assets {
		if !e.balances[asset].IsPositive() {
			return fmt.Errorf("dust %s: %w", asset, ErrInsufficientBalance)
		}
	}

	total := decimal.Zero
	now := e.now()
	for _, asset := range assets {
		amount := e.balances[asset]
		received := amount.Mul(prices[asset]).Div(targetPrice).Mul(e.feeFactor())
		e.debit(asset, amount)
		total = total.Add(received)
		e.fills = append(e.fills, Fill{
			QuoteID:    uuid.NewString(),
			FromAsset:  asset,
			ToAsset:    target,
			FromAmount: amount,
			ToAmount:   received,
			Fee:        received.Div(e.feeFactor()).Sub(received),
			Dust:       true,
			FilledAt:   now,
		})
	}
	e.balances[target] = e.balances[target].Add(total)

	e.logger.Infof("Sim DUST CONVERTED: %v -> %s %s", assets, total.StringFixed(8), target)
	return nil
}

func (e *SimulatorExecutor) debit(asset string, amount decimal.Decimal) {
	left := e.balances[asset].Sub(amount)
	if left.IsPositive() {
		e.balances[asset] = left
		return
	}
	delete(e.balances, asset)
}
