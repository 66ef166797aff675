// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Exchange   ExchangeConfig   `mapstructure:"Exchange"`
	Scanner    ScannerConfig    `mapstructure:"Scanner"`
	Allocation AllocationConfig `mapstructure:"Allocation"`
	Trading    TradingConfig    `mapstructure:"Trading"`
	Simulator  SimulatorConfig  `mapstructure:"Simulator"`
	Indicators IndicatorConfig  `mapstructure:"Indicators"`
	Metrics    MetricsConfig    `mapstructure:"Metrics"`
	Run        RunConfig        `mapstructure:"Run"`
}

// ExchangeConfig 定义了交易所的连接信息 (只使用公开接口)
type ExchangeConfig struct {
	Name        string
	WSURL       string
	RESTURL     string
	HTTPTimeout time.Duration
}

// ScannerConfig 扫描范围和并发
type ScannerConfig struct {
	Timeframe     string   // K 线周期，例如 "4h"
	CandleLimit   int      // 每个交易对拉取的 K 线数量
	TrendPeriods  int      // 趋势判断使用的收盘价数量
	Workers       int      // 并发拉取的 worker 数量
	TopN          int      // 排名保留数量
	QuoteAssets   []string // 参与扫描的计价资产
	Excluded      []string // 排除的交易对，例如稳定币对 "USDC/USDT"
	Symbols       []string // 非空时只扫描这些交易对 (BASE/QUOTE)
	VolumeCandles int      // 成交量统计使用的 K 线数量
}

// AllocationConfig 规划器参数
type AllocationConfig struct {
	StableAsset         string
	MinScore            float64 // 最低得分
	MaxPositions        int     // 最多持仓数 k
	DustThreshold       float64 // 低于该稳定币价值视为 dust
	MinDiversifyBalance float64 // 分散买入所需的最小稳定币余额
	ConversionHaircut   float64 // 预估兑换所得时扣除的手续费/滑点比例，未配置时取 Simulator.FeeRate
}

// TradingConfig 是否真实执行计划
type TradingConfig struct {
	Enabled bool
	Mode    string // "simulator" 或 "dryrun"
}

// SimulatorConfig 模拟钱包
type SimulatorConfig struct {
	InitialBalances map[string]float64
	FeeRate         float64
	MinNotional     float64       // 单腿最小成交额 (稳定币)
	QuoteTTL        time.Duration // 报价有效期
	DustAsset       string        // dust 兑换目标资产，例如 BNB
}

// IndicatorConfig 快照附加指标
type IndicatorConfig struct {
	Period int
}

type MetricsConfig struct {
	Addr string // 为空时不启动 /metrics
}

type RunConfig struct {
	Interval time.Duration // 0 表示只运行一轮
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Exchange.Name", "binance")
	v.SetDefault("Exchange.RESTURL", "https://api.binance.com")
	v.SetDefault("Exchange.WSURL", "wss://stream.binance.com:9443/ws/!miniTicker@arr")
	v.SetDefault("Exchange.HTTPTimeout", 10*time.Second)

	v.SetDefault("Scanner.Timeframe", "4h")
	v.SetDefault("Scanner.CandleLimit", 6)
	v.SetDefault("Scanner.TrendPeriods", 5)
	v.SetDefault("Scanner.Workers", 8)
	v.SetDefault("Scanner.TopN", 20)
	v.SetDefault("Scanner.QuoteAssets", []string{"USDT"})
	v.SetDefault("Scanner.Excluded", []string{"USDT/USDT", "BUSD/USDT", "TUSD/USDT", "USDC/USDT", "DAI/USDT", "FDUSD/USDT"})
	v.SetDefault("Scanner.VolumeCandles", 6)

	v.SetDefault("Allocation.StableAsset", "USDT")
	v.SetDefault("Allocation.MinScore", 35.0)
	v.SetDefault("Allocation.MaxPositions", 3)
	v.SetDefault("Allocation.DustThreshold", 0.5)
	v.SetDefault("Allocation.MinDiversifyBalance", 10.0)

	v.SetDefault("Trading.Enabled", false)
	v.SetDefault("Trading.Mode", "simulator")

	v.SetDefault("Simulator.InitialBalances", map[string]float64{"USDT": 1000})
	v.SetDefault("Simulator.FeeRate", 0.001)
	v.SetDefault("Simulator.MinNotional", 5.0)
	v.SetDefault("Simulator.QuoteTTL", 10*time.Second)
	v.SetDefault("Simulator.DustAsset", "BNB")

	v.SetDefault("Indicators.Period", 5)
	v.SetDefault("Run.Interval", time.Duration(0))
}

// LoadConfig 读取并解析配置文件，环境变量 ALLOC_* 可覆盖文件中的值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	// 设置配置文件的名称、类型和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("ALLOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// 没有配置文件时使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if !v.IsSet("Allocation.ConversionHaircut") {
		cfg.Allocation.ConversionHaircut = cfg.Simulator.FeeRate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 拒绝明显错误的配置
func (c *Config) Validate() error {
	if c.Allocation.StableAsset == "" {
		return errors.New("allocation stable asset is required")
	}
	if c.Allocation.MaxPositions <= 0 {
		return fmt.Errorf("allocation max positions must be > 0, got %d", c.Allocation.MaxPositions)
	}
	if c.Allocation.DustThreshold < 0 || c.Allocation.MinDiversifyBalance < 0 || c.Allocation.MinScore < 0 {
		return errors.New("allocation thresholds must not be negative")
	}
	if c.Allocation.ConversionHaircut < 0 || c.Allocation.ConversionHaircut >= 1 {
		return fmt.Errorf("allocation conversion haircut must be in [0, 1), got %v", c.Allocation.ConversionHaircut)
	}
	if c.Simulator.FeeRate < 0 || c.Simulator.FeeRate >= 1 {
		return fmt.Errorf("simulator fee rate must be in [0, 1), got %v", c.Simulator.FeeRate)
	}
	if c.Scanner.CandleLimit < 1 {
		return fmt.Errorf("scanner candle limit must be >= 1, got %d", c.Scanner.CandleLimit)
	}
	if c.Scanner.Workers <= 0 {
		return fmt.Errorf("scanner workers must be > 0, got %d", c.Scanner.Workers)
	}
	if _, err := ParseIntervalDuration(c.Scanner.Timeframe); err != nil {
		return fmt.Errorf("scanner timeframe: %w", err)
	}
	switch c.Trading.Mode {
	case "simulator", "dryrun":
	default:
		return fmt.Errorf("trading mode must be simulator or dryrun, got %q", c.Trading.Mode)
	}
	return nil
}
