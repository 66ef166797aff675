package executor

import (
	"context"

	"candle-allocator/internal/model"

	"go.uber.org/zap"
)

// DryRunExecutor 交易关闭时使用：只记录将要执行的操作
type DryRunExecutor struct {
	stableAsset string
	logger      *zap.Logger
}

func NewDryRunExecutor(stableAsset string, logger *zap.Logger) *DryRunExecutor {
	return &DryRunExecutor{
		stableAsset: stableAsset,
		logger:      logger.With(zap.String("executor", "dryrun")),
	}
}

func (e *DryRunExecutor) ConvertToStable(_ context.Context, asset string, amount float64) error {
	e.logger.Info("Would sell",
		zap.String("Asset", asset),
		zap.Float64("Amount", amount),
		zap.String("To", e.stableAsset))
	return nil
}

func (e *DryRunExecutor) BuyWithStable(_ context.Context, instrument model.Instrument, stableAmount float64) error {
	e.logger.Info("Would buy",
		zap.String("Symbol", instrument.Symbol),
		zap.Float64("StableAmount", stableAmount),
		zap.String("From", e.stableAsset))
	return nil
}

func (e *DryRunExecutor) ConvertDust(_ context.Context, assets []string) error {
	e.logger.Info("Would convert dust", zap.Strings("Assets", assets))
	return nil
}
