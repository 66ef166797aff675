package execution

import (
	"context"
	"strings"
	"time"

	"candle-allocator/internal/executor"
	"candle-allocator/internal/metrics"
	"candle-allocator/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner 按 兑换 -> dust -> 买入 的顺序执行计划
// 每一腿独立：失败只记录，不重试，不回滚已执行的腿
type Runner struct {
	exec    executor.Executor
	metrics *metrics.Recorder
	logger  *zap.Logger
}

func NewRunner(exec executor.Executor, rec *metrics.Recorder, logger *zap.Logger) *Runner {
	return &Runner{
		exec:    exec,
		metrics: rec,
		logger:  logger.With(zap.String("component", "runner")),
	}
}

// Execute 执行计划并返回汇总
func (r *Runner) Execute(ctx context.Context, plan *model.AllocationPlan) *model.ExecutionReport {
	report := &model.ExecutionReport{PlanID: plan.ID, StartedAt: time.Now()}

	for _, conv := range plan.Conversions {
		r.leg(ctx, report, model.LegConvert, conv.Asset, conv.Amount, func(ctx context.Context) error {
			return r.exec.ConvertToStable(ctx, conv.Asset, conv.Amount)
		})
	}

	if len(plan.DustConversions) > 0 {
		assets := make([]string, 0, len(plan.DustConversions))
		total := 0.0
		for _, d := range plan.DustConversions {
			assets = append(assets, d.Asset)
			total += d.EstimatedValue
		}
		r.leg(ctx, report, model.LegDust, strings.Join(assets, ","), total, func(ctx context.Context) error {
			return r.exec.ConvertDust(ctx, assets)
		})
	}

	for _, alloc := range plan.Allocations {
		r.leg(ctx, report, model.LegBuy, alloc.Instrument.Symbol, alloc.Amount, func(ctx context.Context) error {
			return r.exec.BuyWithStable(ctx, alloc.Instrument, alloc.Amount)
		})
	}

	report.FinishedAt = time.Now()
	r.metrics.RecordLatency("execute", report.FinishedAt.Sub(report.StartedAt).Seconds())

	failed := report.Failed()
	if len(failed) > 0 {
		r.logger.Warn("Plan executed with failed legs",
			zap.String("PlanID", plan.ID),
			zap.Int("Legs", len(report.Legs)),
			zap.Int("Failed", len(failed)))
	} else {
		r.logger.Info("Plan executed", zap.String("PlanID", plan.ID), zap.Int("Legs", len(report.Legs)))
	}
	return report
}

func (r *Runner) leg(ctx context.Context, report *model.ExecutionReport, kind model.LegKind, target string, amount float64, run func(context.Context) error) {
	res := model.LegResult{ID: uuid.NewString(), Kind: kind, Target: target, Amount: amount}

	err := ctx.Err()
	if err == nil {
		err = run(ctx)
	}
	if err != nil {
		res.Err = &model.LegError{Kind: kind, Target: target, Err: err}
		r.logger.Error("Execution leg failed",
			zap.String("Kind", string(kind)),
			zap.String("Target", target),
			zap.Float64("Amount", amount),
			zap.Error(err))
	} else {
		res.Executed = true
	}
	r.metrics.RecordLeg(string(kind), res.Executed)
	report.Legs = append(report.Legs, res)
}
