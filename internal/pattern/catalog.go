package pattern

// 形态名称
const (
	Hammer               = "hammer"
	InvertedHammer       = "inverted_hammer"
	HangingMan           = "hanging_man"
	ShootingStar         = "shooting_star"
	Doji                 = "doji"
	SpinningTop          = "spinning_top"
	BullishMarubozu      = "bullish_marubozu"
	BearishMarubozu      = "bearish_marubozu"
	BullishEngulfing     = "bullish_engulfing"
	BearishEngulfing     = "bearish_engulfing"
	BullishHarami        = "bullish_harami"
	BearishHarami        = "bearish_harami"
	PiercingLine         = "piercing_line"
	DarkCloudCover       = "dark_cloud_cover"
	MorningStar          = "morning_star"
	EveningStar          = "evening_star"
	ThreeWhiteSoldiers   = "three_white_soldiers"
	ThreeBlackCrows      = "three_black_crows"
	BullishAbandonedBaby = "bullish_abandoned_baby"
	BearishAbandonedBaby = "bearish_abandoned_baby"
	DownsideTasukiGap    = "downside_tasuki_gap"
)

// Catalog 内置形态目录，顺序即注册顺序
func Catalog() []Definition {
	return []Definition{
		{Name: Hammer, RequiredCandles: 1, Bullish: true, Detect: DetectHammer},
		{Name: InvertedHammer, RequiredCandles: 1, Bullish: true, Detect: DetectInvertedHammer},
		{Name: HangingMan, RequiredCandles: 1, Bearish: true, Detect: DetectHangingMan},
		{Name: ShootingStar, RequiredCandles: 1, Bearish: true, Detect: DetectShootingStar},
		{Name: Doji, RequiredCandles: 1, Bullish: true, Bearish: true, Detect: DetectDoji},
		{Name: SpinningTop, RequiredCandles: 1, Bullish: true, Bearish: true, Detect: DetectSpinningTop},
		{Name: BullishMarubozu, RequiredCandles: 1, Bullish: true, Detect: DetectBullishMarubozu},
		{Name: BearishMarubozu, RequiredCandles: 1, Bearish: true, Detect: DetectBearishMarubozu},

		{Name: BullishEngulfing, RequiredCandles: 2, Bullish: true, Detect: DetectBullishEngulfing},
		{Name: BearishEngulfing, RequiredCandles: 2, Bearish: true, Detect: DetectBearishEngulfing},
		{Name: BullishHarami, RequiredCandles: 2, Bullish: true, Detect: DetectBullishHarami},
		{Name: BearishHarami, RequiredCandles: 2, Bearish: true, Detect: DetectBearishHarami},
		{Name: PiercingLine, RequiredCandles: 2, Bullish: true, Detect: DetectPiercingLine},
		{Name: DarkCloudCover, RequiredCandles: 2, Bearish: true, Detect: DetectDarkCloudCover},

		{Name: MorningStar, RequiredCandles: 3, Bullish: true, Detect: DetectMorningStar},
		{Name: EveningStar, RequiredCandles: 3, Bearish: true, Detect: DetectEveningStar},
		{Name: ThreeWhiteSoldiers, RequiredCandles: 3, Bullish: true, Detect: DetectThreeWhiteSoldiers},
		{Name: ThreeBlackCrows, RequiredCandles: 3, Bearish: true, Detect: DetectThreeBlackCrows},
		{Name: BullishAbandonedBaby, RequiredCandles: 3, Bullish: true, Detect: DetectBullishAbandonedBaby},
		{Name: BearishAbandonedBaby, RequiredCandles: 3, Bearish: true, Detect: DetectBearishAbandonedBaby},
		{Name: DownsideTasukiGap, RequiredCandles: 3, Bearish: true, Detect: DetectDownsideTasukiGap},
	}
}

// DefaultRegistry 注册内置目录并冻结
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, d := range Catalog() {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
