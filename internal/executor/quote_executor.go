package executor

import (
	"context"
	"fmt"

	"candle-allocator/internal/model"

	"go.uber.org/zap"
)

// QuoteExecutor 用询价 + 接受两步协议实现 Executor
type QuoteExecutor struct {
	stableAsset string
	converter   Converter
	dust        DustConverter
	logger      *zap.Logger
}

// NewQuoteExecutor dust 为 nil 时 ConvertDust 返回错误
func NewQuoteExecutor(stableAsset string, converter Converter, dust DustConverter, logger *zap.Logger) *QuoteExecutor {
	return &QuoteExecutor{
		stableAsset: stableAsset,
		converter:   converter,
		dust:        dust,
		logger:      logger.With(zap.String("executor", "quote")),
	}
}

// ConvertToStable 卖出 asset 换稳定币
func (e *QuoteExecutor) ConvertToStable(ctx context.Context, asset string, amount float64) error {
	return e.convert(ctx, asset, e.stableAsset, amount)
}

// BuyWithStable 用稳定币换 instrument 的基础资产
func (e *QuoteExecutor) BuyWithStable(ctx context.Context, instrument model.Instrument, stableAmount float64) error {
	return e.convert(ctx, e.stableAsset, instrument.Base, stableAmount)
}

// ConvertDust 直接交给 DustConverter
func (e *QuoteExecutor) ConvertDust(ctx context.Context, assets []string) error {
	if e.dust == nil {
		return fmt.Errorf("dust conversion not supported")
	}
	return e.dust.ConvertDust(ctx, assets)
}

func (e *QuoteExecutor) convert(ctx context.Context, from, to string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("convert %s -> %s: amount must be positive, got %v", from, to, amount)
	}
	quote, err := e.converter.RequestQuote(ctx, from, to, amount)
	if err != nil {
		return fmt.Errorf("request quote %s -> %s: %w", from, to, err)
	}
	status, err := e.converter.AcceptQuote(ctx, quote.ID)
	if err != nil {
		return fmt.Errorf("accept quote %s: %w", quote.ID, err)
	}
	if status != OrderSuccess && status != OrderProcessing {
		return fmt.Errorf("quote %s %s -> %s finished with status %s", quote.ID, from, to, status)
	}
	e.logger.Info("Conversion accepted",
		zap.String("QuoteID", quote.ID),
		zap.String("From", from),
		zap.String("To", to),
		zap.String("FromAmount", quote.FromAmount.String()),
		zap.String("ToAmount", quote.ToAmount.String()),
		zap.String("Status", string(status)))
	return nil
}
