package strategy

import (
	"math"

	"candle-allocator/internal/model"
	"candle-allocator/internal/pattern"
)

const (
	alignedMultiplier  = 1.2 // 形态方向与趋势一致，再乘以趋势强度
	neutralMultiplier  = 0.8
	conflictMultiplier = 0.5

	scoreScale       = 25.0
	patternsPerScale = 10.0 // 每 10 个注册形态把得分缩小一倍
	maxScore         = 100.0
)

// Analysis 单个窗口的评分明细
type Analysis struct {
	Score          float64
	Trend          model.TrendLabel
	Patterns       model.PatternScoreMap
	PriceChangePct float64
}

// ScoreAggregator 运行全部形态并按趋势一致性加权，输出 [0,100] 的综合得分
type ScoreAggregator struct {
	registry   *pattern.Registry
	classifier *TrendClassifier
}

// NewScoreAggregator classifier 为 nil 时使用默认 5 周期
func NewScoreAggregator(registry *pattern.Registry, classifier *TrendClassifier) *ScoreAggregator {
	if classifier == nil {
		classifier = NewTrendClassifier(DefaultTrendPeriods)
	}
	return &ScoreAggregator{registry: registry, classifier: classifier}
}

// Aggregate 只返回综合得分
func (a *ScoreAggregator) Aggregate(window model.CandleWindow) float64 {
	return a.Analyze(window).Score
}

// Analyze 计算综合得分和明细，同一窗口多次调用结果相同
func (a *ScoreAggregator) Analyze(window model.CandleWindow) Analysis {
	res := Analysis{Trend: model.TrendNeutral, Patterns: model.PatternScoreMap{}}
	if window.Len() == 0 {
		return res
	}
	res.Trend = a.classifier.Classify(window)
	res.PriceChangePct = window.PriceChangePct()

	// 1. 窗口不足，直接返回 0
	if window.Len() < a.registry.RequiredWindow() {
		return res
	}

	// 2. 对全部形态打分
	res.Patterns = a.registry.EvaluateAll(window, res.Trend)

	// 3. 趋势强度 [1,2]
	trendStrength := clamp(1+math.Abs(res.PriceChangePct)/20, 1.0, 2.0)

	// 4. 加权累加，按注册顺序遍历保证浮点累加顺序稳定
	accumulated := 0.0
	for _, def := range a.registry.Definitions() {
		raw := res.Patterns[def.Name]
		if raw <= 0 {
			continue
		}
		accumulated += raw * multiplier(def, res.Trend, trendStrength)
	}

	// 5. 归一化，与注册形态数量解耦
	scale := math.Max(1, float64(a.registry.Count())/patternsPerScale)
	res.Score = clamp(accumulated*scoreScale/scale, 0, maxScore)
	return res
}

func multiplier(def pattern.Definition, trend model.TrendLabel, trendStrength float64) float64 {
	switch {
	case def.Aligned(trend):
		return alignedMultiplier * trendStrength
	case trend == model.TrendNeutral:
		return neutralMultiplier
	default:
		return conflictMultiplier
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
