package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable 交易对没有可用的 K 线数据，扫描时跳过该交易对
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrDuplicateName 形态注册重名，只会在启动阶段出现
	ErrDuplicateName = errors.New("duplicate pattern name")
	// ErrPlanningAborted 无法读取持仓，本轮不生成计划
	ErrPlanningAborted = errors.New("planning aborted")
	// ErrExecutionLegFailed 单个买入/兑换腿执行失败
	ErrExecutionLegFailed = errors.New("execution leg failed")
)

// DuplicateNameError 记录重复注册的形态名
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("pattern %q already registered", e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// LegError 执行腿失败的详细信息
type LegError struct {
	Kind   LegKind
	Target string
	Err    error
}

func (e *LegError) Error() string {
	return fmt.Sprintf("%s leg %s failed: %v", e.Kind, e.Target, e.Err)
}

func (e *LegError) Is(target error) bool { return target == ErrExecutionLegFailed }

func (e *LegError) Unwrap() error { return e.Err }
