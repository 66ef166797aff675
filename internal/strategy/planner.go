package strategy

import (
	"context"
	"fmt"
	"time"

	"candle-allocator/internal/model"
	"candle-allocator/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PriceLookup 最新价格查询 (失败不影响整个规划)
type PriceLookup interface {
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)
}

// HoldingsReader 钱包持仓查询
type HoldingsReader interface {
	FetchHoldings(ctx context.Context) ([]model.Holding, error)
}

// AllocationPlanner 根据持仓和排名列表生成目标仓位
type AllocationPlanner struct {
	cfg    *service.AllocationConfig
	prices PriceLookup
	logger *zap.Logger
}

// NewAllocationPlanner 初始化规划器
func NewAllocationPlanner(cfg *service.AllocationConfig, prices PriceLookup, logger *zap.Logger) *AllocationPlanner {
	return &AllocationPlanner{
		cfg:    cfg,
		prices: prices,
		logger: logger.With(zap.String("component", "planner")),
	}
}

// PlanFrom 读取一次持仓快照后生成计划；持仓不可读时返回 ErrPlanningAborted
func (p *AllocationPlanner) PlanFrom(ctx context.Context, holdings HoldingsReader, shortlist []model.OpportunitySnapshot) (*model.AllocationPlan, error) {
	hs, err := holdings.FetchHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch holdings: %w: %w", model.ErrPlanningAborted, err)
	}
	return p.Plan(ctx, hs, shortlist)
}

// Plan 生成分配计划。shortlist 需已排序、已过滤
func (p *AllocationPlanner) Plan(ctx context.Context, holdings []model.Holding, shortlist []model.OpportunitySnapshot) (*model.AllocationPlan, error) {
	if p.cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("max positions must be > 0, got %d", p.cfg.MaxPositions)
	}
	stable := p.cfg.StableAsset

	plan := &model.AllocationPlan{
		ID:          uuid.NewString(),
		StableAsset: stable,
		Targets:     make(map[string]float64),
		CreatedAt:   time.Now(),
	}

	// 1. 决定策略
	var assetsToBuy []model.OpportunitySnapshot
	if len(shortlist) == 0 {
		plan.Strategy = model.StrategyConsolidateToStable
	} else {
		plan.Strategy = model.StrategyDiversify
		assetsToBuy = shortlist[:min(p.cfg.MaxPositions, len(shortlist))]
	}

	keep := make(map[string]bool, len(assetsToBuy))
	for _, s := range assetsToBuy {
		keep[s.Instrument.Base] = true
	}

	// 2. 估值并分类持仓：keep / convert / dust
	stableFree := 0.0
	for _, h := range holdings {
		if h.Total <= 0 {
			continue
		}
		if h.Asset == stable {
			plan.TotalStableValue += h.Total
			stableFree += h.Free
			continue
		}

		price, valued := p.lastPrice(ctx, h.Asset)
		if valued {
			plan.TotalStableValue += h.Total * price
		} else {
			plan.Unvalued = append(plan.Unvalued, h.Asset)
		}

		if keep[h.Asset] {
			plan.Keep = append(plan.Keep, h.Asset)
			continue
		}
		if h.Free <= 0 {
			p.logger.Debug("Holding fully locked, skipping conversion", zap.String("Asset", h.Asset))
			continue
		}

		conv := model.Conversion{Asset: h.Asset, Amount: h.Free, Valued: valued}
		if valued {
			conv.EstimatedValue = h.Free * price
		}
		// 未估值的资产按普通兑换处理，最小下单量由执行端校验
		if valued && h.Total*price < p.cfg.DustThreshold {
			plan.DustConversions = append(plan.DustConversions, conv)
			continue
		}
		plan.Conversions = append(plan.Conversions, conv)
	}

	// 兑换所得扣除手续费/滑点后计入可用余额
	plan.AvailableStable = stableFree
	for _, conv := range plan.Conversions {
		plan.AvailableStable += conv.EstimatedValue * (1 - p.cfg.ConversionHaircut)
	}

	if plan.Strategy == model.StrategyConsolidateToStable {
		p.logger.Info("No qualified opportunities, consolidating to stable asset",
			zap.Int("Conversions", len(plan.Conversions)),
			zap.Int("Dust", len(plan.DustConversions)))
		return plan, nil
	}

	// 3. 可用稳定币不足，留在稳定币中
	if plan.AvailableStable <= p.cfg.MinDiversifyBalance {
		plan.Shortfall = p.cfg.MinDiversifyBalance - plan.AvailableStable
		plan.NoOpReason = fmt.Sprintf("available %s %.2f below minimum %.2f",
			stable, plan.AvailableStable, p.cfg.MinDiversifyBalance)
		p.logger.Warn("Insufficient stable balance for diversification",
			zap.Float64("Available", plan.AvailableStable),
			zap.Float64("Shortfall", plan.Shortfall))
		return plan, nil
	}

	// 4. 按得分占比分配
	totalScore := 0.0
	for _, s := range assetsToBuy {
		totalScore += s.AggregateScore
	}
	if totalScore <= 0 {
		plan.NoOpReason = "total score of selected opportunities is zero"
		p.logger.Info("Allocation skipped", zap.String("Reason", plan.NoOpReason))
		return plan, nil
	}

	for _, s := range assetsToBuy {
		amount := plan.AvailableStable * s.AggregateScore / totalScore
		plan.Targets[s.Instrument.Symbol] += amount
		plan.Allocations = append(plan.Allocations, model.Allocation{
			Instrument: s.Instrument,
			Score:      s.AggregateScore,
			Amount:     amount,
		})
	}

	p.logger.Info("Diversification plan ready",
		zap.String("PlanID", plan.ID),
		zap.Int("Positions", len(plan.Allocations)),
		zap.Float64("Available", plan.AvailableStable),
		zap.Float64("TotalValue", plan.TotalStableValue))
	return plan, nil
}

func (p *AllocationPlanner) lastPrice(ctx context.Context, asset string) (float64, bool) {
	symbol := model.NewInstrument(asset, p.cfg.StableAsset).Symbol
	price, err := p.prices.FetchLastPrice(ctx, symbol)
	if err != nil || price <= 0 {
		p.logger.Warn("Could not value holding", zap.String("Asset", asset), zap.String("Symbol", symbol), zap.Error(err))
		return 0, false
	}
	return price, true
}
