package strategy

import "candle-allocator/internal/model"

const (
	DefaultTrendPeriods = 5
	DefaultUpRatio      = 1.02 // 上涨 2%
	DefaultDownRatio    = 0.98 // 下跌 2%
)

// TrendClassifier 基于收盘价的粗粒度趋势判断 (纯函数，无状态)
type TrendClassifier struct {
	Periods   int
	UpRatio   float64
	DownRatio float64
}

// NewTrendClassifier periods <= 0 时使用默认值 5
func NewTrendClassifier(periods int) *TrendClassifier {
	if periods <= 0 {
		periods = DefaultTrendPeriods
	}
	return &TrendClassifier{
		Periods:   periods,
		UpRatio:   DefaultUpRatio,
		DownRatio: DefaultDownRatio,
	}
}

// Classify 比较 periods 根之前的收盘价与最新收盘价
func (tc *TrendClassifier) Classify(window model.CandleWindow) model.TrendLabel {
	n := window.Len()
	if n < tc.Periods || tc.Periods <= 0 {
		return model.TrendNeutral
	}

	base := window.At(n - tc.Periods).Close
	if base <= 0 {
		return model.TrendNeutral
	}
	ratio := window.Last().Close / base

	switch {
	case ratio >= tc.UpRatio:
		return model.TrendUp
	case ratio <= tc.DownRatio:
		return model.TrendDown
	default:
		return model.TrendNeutral
	}
}
