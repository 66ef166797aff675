package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"candle-allocator/internal/metrics"
	"candle-allocator/internal/model"

	"go.uber.org/zap"
)

// Ticker 实时最新价 (来自 websocket miniTicker)
type Ticker struct {
	Symbol    string
	Price     float64
	Timestamp int64 // 毫秒
}

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceBook 负责接收 Ticker，维护每个交易对的最新价格
type PriceBook struct {
	mu      sync.RWMutex
	in      <-chan Ticker
	symbols map[string]bool // 为空时接收全部交易对
	prices  map[string]pricePoint
	maxAge  time.Duration // 超过该时间的价格视为过期，0 表示不过期

	fallback PriceSource // 本地没有新鲜价格时使用，例如 REST
	metrics  *metrics.Recorder
	logger   *zap.Logger
}

// NewPriceBook 创建价格簿。symbols 为空时不过滤
func NewPriceBook(in <-chan Ticker, symbols []string, maxAge time.Duration, fallback PriceSource, rec *metrics.Recorder, logger *zap.Logger) *PriceBook {
	filter := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		filter[s] = true
	}
	return &PriceBook{
		in:       in,
		symbols:  filter,
		prices:   make(map[string]pricePoint),
		maxAge:   maxAge,
		fallback: fallback,
		metrics:  rec,
		logger:   logger.With(zap.String("component", "price_book")),
	}
}

// Start 消费 Ticker 直到通道关闭或 ctx 取消
func (pb *PriceBook) Start(ctx context.Context) {
	pb.logger.Info("Price book started, monitoring ticker stream...", zap.Int("Symbols", len(pb.symbols)))
	for {
		select {
		case <-ctx.Done():
			pb.logger.Info("Price book stopped", zap.Error(ctx.Err()))
			return
		case t, ok := <-pb.in:
			if !ok {
				pb.logger.Info("Ticker stream closed, price book stopped")
				return
			}
			pb.Update(t)
		}
	}
}

// Update 写入一个 Ticker；价格非正或不在关注列表的忽略
func (pb *PriceBook) Update(t Ticker) {
	if t.Price <= 0 {
		return
	}
	if len(pb.symbols) > 0 && !pb.symbols[t.Symbol] {
		return
	}
	at := time.Now()
	if t.Timestamp > 0 {
		at = time.UnixMilli(t.Timestamp)
	}

	pb.mu.Lock()
	// 乱序到达的旧价格不覆盖新价格
	if cur, ok := pb.prices[t.Symbol]; ok && cur.at.After(at) {
		pb.mu.Unlock()
		return
	}
	pb.prices[t.Symbol] = pricePoint{price: t.Price, at: at}
	pb.mu.Unlock()

	pb.metrics.RecordLastPrice(t.Symbol, t.Price)
}

// Price 返回本地缓存的价格，过期或不存在时 ok=false
func (pb *PriceBook) Price(symbol string) (float64, bool) {
	pb.mu.RLock()
	p, ok := pb.prices[symbol]
	pb.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if pb.maxAge > 0 && time.Since(p.at) > pb.maxAge {
		return 0, false
	}
	return p.price, true
}

// Len 已缓存的交易对数量
func (pb *PriceBook) Len() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return len(pb.prices)
}

// FetchLastPrice 实现 PriceSource：优先本地缓存，其次 fallback
func (pb *PriceBook) FetchLastPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ok := pb.Price(symbol); ok {
		return price, nil
	}
	if pb.fallback == nil {
		return 0, fmt.Errorf("no live price for %s: %w", symbol, model.ErrDataUnavailable)
	}
	price, err := pb.fallback.FetchLastPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	pb.Update(Ticker{Symbol: symbol, Price: price})
	return price, nil
}
