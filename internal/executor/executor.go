package executor

import (
	"context"
	"time"

	"candle-allocator/internal/model"

	"github.com/shopspring/decimal"
)

// Executor 负责把计划中的每一腿发送到交易所 (或模拟钱包)
type Executor interface {
	// ConvertToStable 把 amount 数量的 asset 换成稳定币
	ConvertToStable(ctx context.Context, asset string, amount float64) error

	// BuyWithStable 用 stableAmount 稳定币买入 instrument 的基础资产
	BuyWithStable(ctx context.Context, instrument model.Instrument, stableAmount float64) error

	// ConvertDust 小额资产批量兑换
	ConvertDust(ctx context.Context, assets []string) error
}

// OrderStatus 报价接受后的订单状态
type OrderStatus string

const (
	OrderSuccess    OrderStatus = "SUCCESS"
	OrderProcessing OrderStatus = "PROCESS"
	OrderFailed     OrderStatus = "FAIL"
	OrderExpired    OrderStatus = "EXPIRED"
)

// Quote 兑换报价 (先询价再接受)
type Quote struct {
	ID         string
	FromAsset  string
	ToAsset    string
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	Ratio      decimal.Decimal // 1 FromAsset 可换的 ToAsset
	ExpiresAt  time.Time
}

// Expired 报价是否已过期
func (q Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// Converter 两步兑换协议
type Converter interface {
	RequestQuote(ctx context.Context, from, to string, amount float64) (Quote, error)
	AcceptQuote(ctx context.Context, quoteID string) (OrderStatus, error)
}

// DustConverter 小额资产兑换 (例如兑换成 BNB)
type DustConverter interface {
	ConvertDust(ctx context.Context, assets []string) error
}
