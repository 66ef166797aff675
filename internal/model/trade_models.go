package model

import (
	"fmt"
	"sort"
	"time"
)

// PatternScoreMap 形态名 -> 原始置信度 [0,1]
type PatternScoreMap map[string]float64

// Detected 返回得分大于 0 的形态名，按名称排序
func (m PatternScoreMap) Detected() []string {
	var out []string
	for name, score := range m {
		if score > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Indicators 附加在快照上的技术指标，记录在入选日志中，不参与评分
type Indicators struct {
	Ready bool
	SMA   float64
	RSI   float64
	ATR   float64
}

// OpportunitySnapshot 单个交易对一次分析的结果，生成后不可修改
type OpportunitySnapshot struct {
	Instrument       Instrument
	AggregateScore   float64 // [0,100]
	Trend            TrendLabel
	CurrentPrice     float64
	VolumeWindowSum  float64
	PriceChangePct   float64
	DetectedPatterns PatternScoreMap
	Indicators       Indicators
	EvaluatedAt      time.Time
}

func (s OpportunitySnapshot) String() string {
	return fmt.Sprintf("%s score=%.1f trend=%s price=%.8g change=%+.2f%% vol=%.2f",
		s.Instrument, s.AggregateScore, s.Trend, s.CurrentPrice, s.PriceChangePct, s.VolumeWindowSum)
}

// Strategy 分配策略
type Strategy string

const (
	StrategyConsolidateToStable Strategy = "CONSOLIDATE_TO_STABLE" // 全部换成稳定币等待
	StrategyDiversify           Strategy = "DIVERSIFY"             // 分散买入排名靠前的交易对
)

// Allocation 单个买入目标
type Allocation struct {
	Instrument Instrument
	Score      float64
	Amount     float64 // 计价货币数量
}

// Conversion 单个换成稳定币的资产
type Conversion struct {
	Asset          string
	Amount         float64 // 资产数量 (Free)
	EstimatedValue float64 // 估算的稳定币价值，未估值时为 0
	Valued         bool
}

// AllocationPlan 一次规划的结果
type AllocationPlan struct {
	ID          string
	Strategy    Strategy
	StableAsset string

	Targets         map[string]float64 // instrument symbol -> 计价货币数量
	Allocations     []Allocation       // 与 Targets 相同，按排名顺序
	Conversions     []Conversion
	DustConversions []Conversion
	Keep            []string // 已在前 k 名中的资产，不兑换
	Unvalued        []string // 价格获取失败的资产

	TotalStableValue float64 // 钱包估值 (不含未估值资产)
	AvailableStable  float64 // 可用于分配的稳定币
	Shortfall        float64 // 低于最小分散余额时的差额
	NoOpReason       string
	CreatedAt        time.Time
}

// TargetSum 所有买入目标之和
func (p *AllocationPlan) TargetSum() float64 {
	sum := 0.0
	for _, v := range p.Targets {
		sum += v
	}
	return sum
}

// LegKind 执行腿类型
type LegKind string

const (
	LegConvert LegKind = "CONVERT" // 资产 -> 稳定币
	LegDust    LegKind = "DUST"    // 小额资产批量兑换
	LegBuy     LegKind = "BUY"     // 稳定币 -> 资产
)

// LegResult 单个执行腿的结果
type LegResult struct {
	ID       string
	Kind     LegKind
	Target   string // 资产或交易对
	Amount   float64
	Executed bool
	Err      error
}

// ExecutionReport 计划执行汇总 (尽力而为，不回滚)
type ExecutionReport struct {
	PlanID     string
	Legs       []LegResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed 未执行的腿
func (r *ExecutionReport) Failed() []LegResult {
	var out []LegResult
	for _, l := range r.Legs {
		if !l.Executed {
			out = append(out, l)
		}
	}
	return out
}

func (r *ExecutionReport) String() string {
	return fmt.Sprintf("REPORT [%s] legs=%d failed=%d took=%s",
		r.PlanID, len(r.Legs), len(r.Failed()), r.FinishedAt.Sub(r.StartedAt))
}
