package pattern

import (
	"errors"
	"fmt"
	"sync"

	"candle-allocator/internal/model"
)

// DetectFunc 统一的检测函数签名：接收长度为 RequiredCandles 的尾部窗口和趋势标签，返回 [0,1] 置信度
type DetectFunc func(tail []model.Candle, trend model.TrendLabel) float64

// Definition 一个形态的定义
type Definition struct {
	Name            string
	RequiredCandles int
	Bullish         bool
	Bearish         bool
	Detect          DetectFunc
}

// Aligned 判断形态方向是否与趋势一致
func (d Definition) Aligned(trend model.TrendLabel) bool {
	return (d.Bullish && trend == model.TrendUp) || (d.Bearish && trend == model.TrendDown)
}

var errRegistryFrozen = errors.New("pattern registry is frozen")

// Registry 形态注册表：启动时只追加，运行期只读
type Registry struct {
	mu      sync.RWMutex
	defs    []Definition
	index   map[string]int
	frozen  bool
	maxTail int
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register 追加一个定义，重名返回 DuplicateNameError
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("pattern name is empty")
	}
	if def.RequiredCandles < 1 {
		return fmt.Errorf("pattern %q: required candles must be >= 1, got %d", def.Name, def.RequiredCandles)
	}
	if def.Detect == nil {
		return fmt.Errorf("pattern %q: detect func is nil", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %q: %w", def.Name, errRegistryFrozen)
	}
	if _, ok := r.index[def.Name]; ok {
		return &DuplicateNameError{Name: def.Name}
	}
	r.index[def.Name] = len(r.defs)
	r.defs = append(r.defs, def)
	if def.RequiredCandles > r.maxTail {
		r.maxTail = def.RequiredCandles
	}
	return nil
}

// DuplicateNameError 复用 model 中的错误类型
type DuplicateNameError = model.DuplicateNameError

// Freeze 结束初始化，之后 Register 一律失败
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// RequiredWindow 所有定义中最大的 RequiredCandles，空注册表返回 1
func (r *Registry) RequiredWindow() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.maxTail == 0 {
		return 1
	}
	return r.maxTail
}

// Count 已注册形态数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Definitions 按注册顺序返回副本
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// EvaluateAll 对每个定义打分：窗口不足时记 0，否则用尾部窗口调用 Detect
func (r *Registry) EvaluateAll(window model.CandleWindow, trend model.TrendLabel) model.PatternScoreMap {
	defs := r.Definitions()
	scores := make(model.PatternScoreMap, len(defs))
	for _, d := range defs {
		if window.Len() < d.RequiredCandles {
			scores[d.Name] = 0.0
			continue
		}
		scores[d.Name] = clamp01(d.Detect(window.Tail(d.RequiredCandles), trend))
	}
	return scores
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
