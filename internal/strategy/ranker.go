package strategy

import (
	"math"
	"sort"

	"candle-allocator/internal/model"
)

const (
	// 低于该涨跌幅视为暴跌，不买入
	crashPriceChangePct = -10.0

	positiveSignalScore = 20.0
	strongSignalScore   = 50.0
)

// Rank 按得分降序稳定排序，得分相同保持输入顺序；topN <= 0 返回全部
// 不修改输入
func Rank(snapshots []model.OpportunitySnapshot, topN int) []model.OpportunitySnapshot {
	out := make([]model.OpportunitySnapshot, len(snapshots))
	copy(out, snapshots)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AggregateScore > out[j].AggregateScore
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// FilterQualified 保留 得分 >= minScore、趋势为 up/neutral、涨跌幅 > -10% 的快照 (涨跌幅为 NaN 时剔除)
func FilterQualified(snapshots []model.OpportunitySnapshot, minScore float64) []model.OpportunitySnapshot {
	out := make([]model.OpportunitySnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.AggregateScore < minScore {
			continue
		}
		if s.Trend != model.TrendUp && s.Trend != model.TrendNeutral {
			continue
		}
		if math.IsNaN(s.PriceChangePct) || s.PriceChangePct <= crashPriceChangePct {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FilterQuote 只保留以 quote 计价的交易对
func FilterQuote(snapshots []model.OpportunitySnapshot, quote string) []model.OpportunitySnapshot {
	out := make([]model.OpportunitySnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Instrument.Quote == quote {
			out = append(out, s)
		}
	}
	return out
}

// Summary 扫描结果统计
type Summary struct {
	Total        int
	Positive     int // 得分 > 20
	Strong       int // 得分 > 50
	Moderate     int // 20 < 得分 <= 50
	Uptrend      int
	Downtrend    int
	Neutral      int
	AverageScore float64
	MaxScore     float64
}

// Summarize 统计得分和趋势分布
func Summarize(snapshots []model.OpportunitySnapshot) Summary {
	s := Summary{Total: len(snapshots)}
	if len(snapshots) == 0 {
		return s
	}
	sum := 0.0
	for _, snap := range snapshots {
		score := snap.AggregateScore
		sum += score
		if score > s.MaxScore {
			s.MaxScore = score
		}
		if score > positiveSignalScore {
			s.Positive++
		}
		switch {
		case score > strongSignalScore:
			s.Strong++
		case score > positiveSignalScore:
			s.Moderate++
		}
		switch snap.Trend {
		case model.TrendUp:
			s.Uptrend++
		case model.TrendDown:
			s.Downtrend++
		default:
			s.Neutral++
		}
	}
	s.AverageScore = sum / float64(len(snapshots))
	return s
}
