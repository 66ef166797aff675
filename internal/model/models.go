package model

import (
	"fmt"
	"math"
	"time"
)

// Candle 代表一根 OHLCV K 线
type Candle struct {
	OpenTime time.Time // 开盘时间
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Body 实体长度 |close-open|
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range 总波幅 high-low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick 上影线
func (c Candle) UpperWick() float64 {
	return c.High - max(c.Open, c.Close)
}

// LowerWick 下影线
func (c Candle) LowerWick() float64 {
	return min(c.Open, c.Close) - c.Low
}

// Mid 实体中点
func (c Candle) Mid() float64 {
	return (c.Open + c.Close) / 2
}

func (c Candle) IsBullish() bool { return c.Close > c.Open }
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Validate 检查 low <= min(open,close) <= max(open,close) <= high
func (c Candle) Validate() error {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle %s: non-finite value %v", c.OpenTime.Format(time.RFC3339), v)
		}
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("candle %s: prices must be positive", c.OpenTime.Format(time.RFC3339))
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s: negative volume %f", c.OpenTime.Format(time.RFC3339), c.Volume)
	}
	if c.Low > min(c.Open, c.Close) || max(c.Open, c.Close) > c.High {
		return fmt.Errorf("candle %s: OHLC out of order (O=%f H=%f L=%f C=%f)",
			c.OpenTime.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
	}
	return nil
}

// CandleWindow 是一段按时间严格递增的只读 K 线序列
// 每次分析都从外部数据源新建，消费者只拿到切片视图
type CandleWindow struct {
	candles []Candle
}

// NewCandleWindow 复制输入并校验顺序与 OHLC 关系
func NewCandleWindow(candles []Candle) (CandleWindow, error) {
	if len(candles) == 0 {
		return CandleWindow{}, fmt.Errorf("empty candle window: %w", ErrDataUnavailable)
	}
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	for i, c := range cp {
		if err := c.Validate(); err != nil {
			return CandleWindow{}, err
		}
		if i > 0 && !c.OpenTime.After(cp[i-1].OpenTime) {
			return CandleWindow{}, fmt.Errorf("candle %d: open time %s not after %s",
				i, c.OpenTime.Format(time.RFC3339), cp[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return CandleWindow{candles: cp}, nil
}

func (w CandleWindow) Len() int { return len(w.candles) }

// Tail 返回最后 n 根 K 线 (n 大于长度时返回全部)
// 返回值带容量上限，append 不会写回窗口
func (w CandleWindow) Tail(n int) []Candle {
	if n > len(w.candles) {
		n = len(w.candles)
	}
	if n <= 0 {
		return nil
	}
	start := len(w.candles) - n
	return w.candles[start:len(w.candles):len(w.candles)]
}

func (w CandleWindow) At(i int) Candle { return w.candles[i] }
func (w CandleWindow) First() Candle  { return w.candles[0] }
func (w CandleWindow) Last() Candle   { return w.candles[len(w.candles)-1] }

// Candles 返回副本
func (w CandleWindow) Candles() []Candle {
	cp := make([]Candle, len(w.candles))
	copy(cp, w.candles)
	return cp
}

// Closes 收盘价序列 (副本)
func (w CandleWindow) Closes() []float64 {
	out := make([]float64, len(w.candles))
	for i, c := range w.candles {
		out[i] = c.Close
	}
	return out
}

// PriceChangePct 窗口首尾收盘价涨跌幅 (百分比)
func (w CandleWindow) PriceChangePct() float64 {
	if len(w.candles) == 0 || w.First().Close == 0 {
		return 0
	}
	first := w.First().Close
	return (w.Last().Close - first) / first * 100
}

// VolumeSum 最近 n 根 K 线成交量之和
func (w CandleWindow) VolumeSum(n int) float64 {
	sum := 0.0
	for _, c := range w.Tail(n) {
		sum += c.Volume
	}
	return sum
}

// TrendLabel 粗粒度趋势标签
type TrendLabel string

const (
	TrendUp      TrendLabel = "up"
	TrendDown    TrendLabel = "down"
	TrendNeutral TrendLabel = "neutral"
)

func (t TrendLabel) String() string {
	return string(t)
}

// Instrument 交易对，例如 BTCUSDT = BTC/USDT
type Instrument struct {
	Symbol string // 交易所符号，例如 "BTCUSDT"
	Base   string // 基础资产 "BTC"
	Quote  string // 计价资产 "USDT"
}

func (i Instrument) String() string {
	return i.Base + "/" + i.Quote
}

// NewInstrument 根据 base/quote 构造 Binance 风格的交易对
func NewInstrument(base, quote string) Instrument {
	return Instrument{Symbol: base + quote, Base: base, Quote: quote}
}

// Holding 钱包中的单个资产余额 (外部只读输入)
type Holding struct {
	Asset  string
	Total  float64
	Free   float64
	Locked float64
}
