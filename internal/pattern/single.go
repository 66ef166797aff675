package pattern

import "candle-allocator/internal/model"

// ----- 固定阈值与置信度 -----

const (
	hammerWickBodyRatio = 2.0 // 长影线 > 2 倍实体
	hammerBodyMaxPct    = 0.3 // 实体 < 30% 波幅
	dojiBodyMaxPct      = 0.1 // 十字星实体 < 10% 波幅
	spinBodyMinPct      = 0.1
	spinBodyMaxPct      = 0.3
	marubozuBodyMinPct  = 0.9

	scoreHammer   = 0.8
	scoreDoji     = 0.7
	scoreSpinning = 0.6
	scoreMarubozu = 0.85
)

// 所有单 K 线检测在 high == low 时返回 0，避免除零

func isHammerShape(c model.Candle) bool {
	rng := c.Range()
	if rng <= 0 {
		return false
	}
	body := c.Body()
	return c.LowerWick() > hammerWickBodyRatio*body &&
		c.UpperWick() < body &&
		body < rng*hammerBodyMaxPct
}

func isInvertedHammerShape(c model.Candle) bool {
	rng := c.Range()
	if rng <= 0 {
		return false
	}
	body := c.Body()
	return c.UpperWick() > hammerWickBodyRatio*body &&
		c.LowerWick() < body &&
		body < rng*hammerBodyMaxPct
}

func isDojiShape(c model.Candle) bool {
	rng := c.Range()
	if rng <= 0 {
		return false
	}
	return c.Body() < rng*dojiBodyMaxPct
}

// DetectHammer 锤子线：长下影、小实体、短上影
func DetectHammer(tail []model.Candle, _ model.TrendLabel) float64 {
	if isHammerShape(tail[len(tail)-1]) {
		return scoreHammer
	}
	return 0.0
}

// DetectInvertedHammer 倒锤子线：长上影、小实体、短下影
func DetectInvertedHammer(tail []model.Candle, _ model.TrendLabel) float64 {
	if isInvertedHammerShape(tail[len(tail)-1]) {
		return scoreHammer
	}
	return 0.0
}

// DetectHangingMan 上涨趋势中的锤子线，其它趋势一律 0
func DetectHangingMan(tail []model.Candle, trend model.TrendLabel) float64 {
	if trend != model.TrendUp {
		return 0.0
	}
	return DetectHammer(tail, trend)
}

// DetectShootingStar 上涨趋势中的倒锤子线
func DetectShootingStar(tail []model.Candle, trend model.TrendLabel) float64 {
	if trend != model.TrendUp {
		return 0.0
	}
	return DetectInvertedHammer(tail, trend)
}

// DetectDoji 十字星
func DetectDoji(tail []model.Candle, _ model.TrendLabel) float64 {
	if isDojiShape(tail[len(tail)-1]) {
		return scoreDoji
	}
	return 0.0
}

// DetectSpinningTop 纺锤线：实体 10%~30% 波幅，上下影线都长于实体
func DetectSpinningTop(tail []model.Candle, _ model.TrendLabel) float64 {
	c := tail[len(tail)-1]
	rng := c.Range()
	if rng <= 0 {
		return 0.0
	}
	body := c.Body()
	if body < rng*spinBodyMinPct || body > rng*spinBodyMaxPct {
		return 0.0
	}
	if c.UpperWick() > body && c.LowerWick() > body {
		return scoreSpinning
	}
	return 0.0
}

// DetectBullishMarubozu 光头光脚阳线
func DetectBullishMarubozu(tail []model.Candle, _ model.TrendLabel) float64 {
	c := tail[len(tail)-1]
	rng := c.Range()
	if rng <= 0 || !c.IsBullish() {
		return 0.0
	}
	if c.Body() >= rng*marubozuBodyMinPct {
		return scoreMarubozu
	}
	return 0.0
}

// DetectBearishMarubozu 光头光脚阴线
func DetectBearishMarubozu(tail []model.Candle, _ model.TrendLabel) float64 {
	c := tail[len(tail)-1]
	rng := c.Range()
	if rng <= 0 || !c.IsBearish() {
		return 0.0
	}
	if c.Body() >= rng*marubozuBodyMinPct {
		return scoreMarubozu
	}
	return 0.0
}
