package ta

import (
	"candle-allocator/internal/model"

	"github.com/markcheno/go-talib"
)

// DefaultPeriod 默认指标周期，与默认 K 线数量匹配
const DefaultPeriod = 5

// TACalculator 在一个 K 线窗口上计算 SMA / RSI / ATR
// 指标只附加在快照上供展示和日志使用
type TACalculator struct {
	Period int
}

// NewTACalculator period <= 1 时使用默认值
func NewTACalculator(period int) *TACalculator {
	if period <= 1 {
		period = DefaultPeriod
	}
	return &TACalculator{Period: period}
}

// MinHistoryLen 计算全部指标所需的最少 K 线数量 (RSI / ATR 需要前一根收盘价)
func (tc *TACalculator) MinHistoryLen() int {
	return tc.Period + 1
}

// Calculate 历史不足时返回 Ready=false 的零值
func (tc *TACalculator) Calculate(window model.CandleWindow) model.Indicators {
	if window.Len() < tc.MinHistoryLen() {
		return model.Indicators{}
	}

	closePrices := window.Closes()
	candles := window.Candles()
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
	}

	// --- 均线 ---
	maResult := talib.Sma(closePrices, tc.Period)

	// --- 相对强弱指数 ---
	rsiResult := talib.Rsi(closePrices, tc.Period)

	// --- 平均真实波动范围 ---
	// talib ATR 需要 High, Low, Previous Close
	atrResult := talib.Atr(high, low, closePrices, tc.Period)

	return model.Indicators{
		Ready: true,
		SMA:   last(maResult),
		RSI:   last(rsiResult),
		ATR:   last(atrResult),
	}
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
