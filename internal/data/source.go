package data

import (
	"context"

	"candle-allocator/internal/model"
)

// CandleSource 拉取一个交易对最近 limit 根 K 线
// 返回 model.ErrDataUnavailable 时扫描器跳过该交易对
type CandleSource interface {
	FetchCandles(ctx context.Context, instrument model.Instrument, timeframe string, limit int) (model.CandleWindow, error)
}

// PriceSource 最新成交价，失败不致命
type PriceSource interface {
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)
}

// HoldingsSource 钱包余额快照
type HoldingsSource interface {
	FetchHoldings(ctx context.Context) ([]model.Holding, error)
}

// InstrumentSource 可交易的现货交易对
type InstrumentSource interface {
	ListInstruments(ctx context.Context) ([]model.Instrument, error)
}
