package pattern

import "candle-allocator/internal/model"

const (
	starMiddleBodyMaxPct = 0.3

	scoreEngulfing    = 0.9
	scoreHarami       = 0.7
	scorePenetration  = 0.75 // piercing line / dark cloud cover
	scoreStar         = 0.95
	scoreThreeSoldier = 0.85
	scoreAbandonedBby = 0.9
	scoreTasukiGap    = 0.65
)

// ----- 双 K 线形态 -----

// DetectBullishEngulfing 看涨吞没：阴线后阳线，阳线实体覆盖前一根实体
func DetectBullishEngulfing(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBearish() || !cur.IsBullish() {
		return 0.0
	}
	if cur.Open < prev.Close && cur.Close > prev.Open {
		return scoreEngulfing
	}
	return 0.0
}

// DetectBearishEngulfing 看跌吞没
func DetectBearishEngulfing(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBullish() || !cur.IsBearish() {
		return 0.0
	}
	if cur.Open > prev.Close && cur.Close < prev.Open {
		return scoreEngulfing
	}
	return 0.0
}

// DetectBullishHarami 看涨孕线：阳线实体完全落在前一根阴线实体内
func DetectBullishHarami(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBearish() || !cur.IsBullish() {
		return 0.0
	}
	if cur.Open > prev.Close && cur.Close < prev.Open {
		return scoreHarami
	}
	return 0.0
}

// DetectBearishHarami 看跌孕线
func DetectBearishHarami(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBullish() || !cur.IsBearish() {
		return 0.0
	}
	if cur.Open < prev.Close && cur.Close > prev.Open {
		return scoreHarami
	}
	return 0.0
}

// DetectPiercingLine 刺透形态：低开于前低之下，收于前一根阴线实体中点之上
func DetectPiercingLine(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBearish() || !cur.IsBullish() {
		return 0.0
	}
	if cur.Open < prev.Low && cur.Close > prev.Mid() && cur.Close < prev.Open {
		return scorePenetration
	}
	return 0.0
}

// DetectDarkCloudCover 乌云盖顶：高开于前高之上，收于前一根阳线实体中点之下
func DetectDarkCloudCover(tail []model.Candle, _ model.TrendLabel) float64 {
	prev, cur := tail[0], tail[1]
	if !prev.IsBullish() || !cur.IsBearish() {
		return 0.0
	}
	if cur.Open > prev.High && cur.Close < prev.Mid() && cur.Close > prev.Open {
		return scorePenetration
	}
	return 0.0
}

// ----- 三 K 线形态 -----

func smallMiddle(c model.Candle) bool {
	return c.Body() < c.Range()*starMiddleBodyMaxPct
}

// DetectMorningStar 启明星
func DetectMorningStar(tail []model.Candle, _ model.TrendLabel) float64 {
	first, second, third := tail[0], tail[1], tail[2]
	if first.IsBearish() && smallMiddle(second) && third.IsBullish() && third.Close > first.Mid() {
		return scoreStar
	}
	return 0.0
}

// DetectEveningStar 黄昏星
func DetectEveningStar(tail []model.Candle, _ model.TrendLabel) float64 {
	first, second, third := tail[0], tail[1], tail[2]
	if first.IsBullish() && smallMiddle(second) && third.IsBearish() && third.Close < first.Mid() {
		return scoreStar
	}
	return 0.0
}

// DetectThreeWhiteSoldiers 红三兵：三根阳线收盘逐级抬高，开盘落在前一根实体内
func DetectThreeWhiteSoldiers(tail []model.Candle, _ model.TrendLabel) float64 {
	for _, c := range tail {
		if !c.IsBullish() {
			return 0.0
		}
	}
	for i := 1; i < len(tail); i++ {
		prev, cur := tail[i-1], tail[i]
		if cur.Close <= prev.Close {
			return 0.0
		}
		if cur.Open <= prev.Open || cur.Open >= prev.Close {
			return 0.0
		}
	}
	return scoreThreeSoldier
}

// DetectThreeBlackCrows 三只乌鸦
func DetectThreeBlackCrows(tail []model.Candle, _ model.TrendLabel) float64 {
	for _, c := range tail {
		if !c.IsBearish() {
			return 0.0
		}
	}
	for i := 1; i < len(tail); i++ {
		prev, cur := tail[i-1], tail[i]
		if cur.Close >= prev.Close {
			return 0.0
		}
		if cur.Open >= prev.Open || cur.Open <= prev.Close {
			return 0.0
		}
	}
	return scoreThreeSoldier
}

// DetectBullishAbandonedBaby 看涨弃婴：中间十字星与两侧 K 线之间都有真实缺口
func DetectBullishAbandonedBaby(tail []model.Candle, _ model.TrendLabel) float64 {
	first, second, third := tail[0], tail[1], tail[2]
	if !first.IsBearish() || !isDojiShape(second) || !third.IsBullish() {
		return 0.0
	}
	if second.High < first.Low && second.High < third.Low {
		return scoreAbandonedBby
	}
	return 0.0
}

// DetectBearishAbandonedBaby 看跌弃婴
func DetectBearishAbandonedBaby(tail []model.Candle, _ model.TrendLabel) float64 {
	first, second, third := tail[0], tail[1], tail[2]
	if !first.IsBullish() || !isDojiShape(second) || !third.IsBearish() {
		return 0.0
	}
	if second.Low > first.High && second.Low > third.High {
		return scoreAbandonedBby
	}
	return 0.0
}

// DetectDownsideTasukiGap 下降跳空并列线：两根阴线向下跳空，第三根阳线开在第二根实体内且收在缺口中
func DetectDownsideTasukiGap(tail []model.Candle, _ model.TrendLabel) float64 {
	first, second, third := tail[0], tail[1], tail[2]
	if !first.IsBearish() || !second.IsBearish() || !third.IsBullish() {
		return 0.0
	}
	if !(second.High < first.Low) {
		return 0.0
	}
	if !(third.Open > second.Close && third.Open < second.Open) {
		return 0.0
	}
	if third.Close > second.High && third.Close < first.Low {
		return scoreTasukiGap
	}
	return 0.0
}
