package technical

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
)

// 中文说明：
// 技术面打分器：从 K 线计算指标序列，按固定规则逐项投票，输出方向观点与证据因子。
// 同一序列多次计算结果必须一致（纯函数，无外部依赖）。
// 单组指标计算失败只放弃该组的票数，不影响其余组。

// Config 打分器参数。
type Config struct {
	// MinPeriods 最少 K 线数量，不足时返回降级观点（默认 50）。
	MinPeriods int
	// RecentWindow 参与投票评估的最近周期数（默认 30）。
	RecentWindow int
	// SwingWindow 摆动高低点检测的对称窗口（默认 5）。
	SwingWindow int
	// ATRPeriod ATR 周期（默认 14）。
	ATRPeriod int
}

// NormalizeConfig 填充默认参数。
func NormalizeConfig(cfg Config) Config {
	if cfg.MinPeriods <= 0 {
		cfg.MinPeriods = 50
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 30
	}
	if cfg.SwingWindow <= 0 {
		cfg.SwingWindow = 5
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return cfg
}

// 各指标关系的票重：长期趋势与交叉事件记 2 票，其余 1 票（RSI 中性区 0.5 票）。
const (
	voteStandard  = 1.0
	voteMajor     = 2.0
	voteHalf      = 0.5
	trendVotes    = 7.0
	momentumVotes = 8.0
	volVotes      = 3.0
	srVotes       = 3.0
)

// Analyze 对给定 K 线执行技术面打分。
// 数据不足时返回 (降级观点, ErrInsufficientData)，调用方可继续使用该观点。
func Analyze(candles []market.Candle, cfg Config) (analysis.Opinion, error) {
	cfg = NormalizeConfig(cfg)
	if len(candles) < cfg.MinPeriods {
		op := analysis.Opinion{
			Source:     analysis.SourceTechnical,
			Direction:  analysis.Neutral,
			Confidence: 0,
			Factors: []analysis.Factor{{
				Name:           "insufficient_data",
				Value:          len(candles),
				Interpretation: "Not enough data for analysis",
			}},
		}
		return op, fmt.Errorf("%w: got %d periods, need %d", analysis.ErrInsufficientData, len(candles), cfg.MinPeriods)
	}

	cols := computeColumns(candles)
	recent := candles[len(candles)-minInt(cfg.RecentWindow, len(candles)):]

	t := &tally{}
	scoreTrend(t, cols)
	scoreMomentum(t, cols)
	scoreVolatility(t, cols, cfg.ATRPeriod)
	scoreSupportResistance(t, recent, cfg.SwingWindow)

	buyScore, sellScore := 0.0, 0.0
	if t.total > 0 {
		buyScore = t.buy / t.total
		sellScore = t.sell / t.total
	}

	direction := analysis.Neutral
	confidence := 0.5
	switch {
	case buyScore > sellScore:
		direction = analysis.Buy
		confidence = 0.5 + math.Min(0.5, (buyScore-sellScore)*2)
	case sellScore > buyScore:
		direction = analysis.Sell
		confidence = 0.5 + math.Min(0.5, (sellScore-buyScore)*2)
	}

	t.addFactor("signal_summary", map[string]any{
		"buy_signals":   t.buy,
		"sell_signals":  t.sell,
		"total_signals": t.total,
		"buy_score":     buyScore,
		"sell_score":    sellScore,
	}, fmt.Sprintf("Technical analysis summary: %s with %.2f confidence", direction, confidence))

	return analysis.Opinion{
		Source:     analysis.SourceTechnical,
		Direction:  direction,
		Confidence: confidence,
		Factors:    t.factors,
	}, nil
}

// tally 累计买卖票数并按评估顺序记录因子。
type tally struct {
	buy, sell, total float64
	factors          []analysis.Factor
}

func (t *tally) addFactor(name string, value any, interp string) {
	t.factors = append(t.factors, analysis.Factor{Name: name, Value: value, Interpretation: interp})
}

func (t *tally) voteBuy(w float64)  { t.buy += w }
func (t *tally) voteSell(w float64) { t.sell += w }

// columns 与 K 线对齐的指标序列（talib 输出，前导暖机段为 0）。
type columns struct {
	closes, highs, lows        []float64
	sma20, sma50, sma200       []float64
	ema12, ema26               []float64
	macd, macdSignal           []float64
	rsi                        []float64
	stochK, stochD             []float64
	bbUpper, bbMiddle, bbLower []float64
}

func computeColumns(candles []market.Candle) columns {
	n := len(candles)
	c := columns{
		closes: make([]float64, n),
		highs:  make([]float64, n),
		lows:   make([]float64, n),
	}
	for i, k := range candles {
		c.closes[i] = k.Close
		c.highs[i] = k.High
		c.lows[i] = k.Low
	}
	c.sma20 = talib.Sma(c.closes, 20)
	c.sma50 = talib.Sma(c.closes, 50)
	if n >= 200 {
		c.sma200 = talib.Sma(c.closes, 200)
	}
	c.ema12 = talib.Ema(c.closes, 12)
	c.ema26 = talib.Ema(c.closes, 26)
	c.macd, c.macdSignal, _ = talib.Macd(c.closes, 12, 26, 9)
	c.rsi = talib.Rsi(c.closes, 14)
	c.stochK, c.stochD = talib.Stoch(c.highs, c.lows, c.closes, 14, 3, talib.SMA, 3, talib.SMA)
	c.bbUpper, c.bbMiddle, c.bbLower = talib.BBands(c.closes, 20, 2, 2, talib.SMA)
	return c
}

// scoreTrend 趋势组：价格与均线、EMA 交叉。共 7 票。
func scoreTrend(t *tally, c columns) {
	n := len(c.closes)
	if n < 2 {
		return
	}
	lastClose := c.closes[n-1]

	if v := last(c.sma20); v > 0 {
		if lastClose > v {
			t.addFactor("price_above_sma_20", lastClose/v, "Price above 20-period SMA, bullish")
			t.voteBuy(voteStandard)
		} else if lastClose < v {
			t.addFactor("price_below_sma_20", v/lastClose, "Price below 20-period SMA, bearish")
			t.voteSell(voteStandard)
		}
	}
	if v := last(c.sma50); v > 0 {
		if lastClose > v {
			t.addFactor("price_above_sma_50", lastClose/v, "Price above 50-period SMA, bullish")
			t.voteBuy(voteStandard)
		} else if lastClose < v {
			t.addFactor("price_below_sma_50", v/lastClose, "Price below 50-period SMA, bearish")
			t.voteSell(voteStandard)
		}
	}
	if v := last(c.sma200); v > 0 {
		if lastClose > v {
			t.addFactor("price_above_sma_200", lastClose/v, "Price above 200-period SMA, bullish (major trend)")
			t.voteBuy(voteMajor)
		} else if lastClose < v {
			t.addFactor("price_below_sma_200", v/lastClose, "Price below 200-period SMA, bearish (major trend)")
			t.voteSell(voteMajor)
		}
	}

	last12, prev12 := lastTwo(c.ema12)
	last26, prev26 := lastTwo(c.ema26)
	if last12 > 0 && last26 > 0 && prev12 > 0 && prev26 > 0 {
		if last12 > last26 && prev12 <= prev26 {
			t.addFactor("ema_12_26_bullish_crossover", last12/last26, "EMA 12 crossed above EMA 26, bullish signal")
			t.voteBuy(voteMajor)
		} else if last12 < last26 && prev12 >= prev26 {
			t.addFactor("ema_12_26_bearish_crossover", last26/last12, "EMA 12 crossed below EMA 26, bearish signal")
			t.voteSell(voteMajor)
		}
	}
	t.total += trendVotes
}

// scoreMomentum 动能组：MACD、RSI、随机指标。共 8 票。
func scoreMomentum(t *tally, c columns) {
	lastMACD, prevMACD := lastTwo(c.macd)
	lastSig, prevSig := lastTwo(c.macdSignal)
	hasMACD := len(c.macd) >= 2 && len(c.macdSignal) >= 2
	if hasMACD {
		if lastMACD > lastSig && prevMACD <= prevSig {
			t.addFactor("macd_bullish_crossover", lastMACD-lastSig, "MACD crossed above signal line, bullish momentum")
			t.voteBuy(voteMajor)
		} else if lastMACD < lastSig && prevMACD >= prevSig {
			t.addFactor("macd_bearish_crossover", lastSig-lastMACD, "MACD crossed below signal line, bearish momentum")
			t.voteSell(voteMajor)
		}
		if lastMACD > 0 {
			t.addFactor("macd_positive", lastMACD, "MACD is positive, bullish momentum")
			t.voteBuy(voteStandard)
		} else if lastMACD < 0 {
			t.addFactor("macd_negative", lastMACD, "MACD is negative, bearish momentum")
			t.voteSell(voteStandard)
		}
	}

	if rsi := last(c.rsi); rsi > 0 {
		switch {
		case rsi > 70:
			t.addFactor("rsi_overbought", rsi, "RSI above 70, overbought condition (potential reversal)")
			t.voteSell(voteStandard)
		case rsi < 30:
			t.addFactor("rsi_oversold", rsi, "RSI below 30, oversold condition (potential reversal)")
			t.voteBuy(voteStandard)
		case rsi > 50:
			t.addFactor("rsi_bullish", rsi, "RSI above 50, bullish momentum")
			t.voteBuy(voteHalf)
		case rsi < 50:
			t.addFactor("rsi_bearish", rsi, "RSI below 50, bearish momentum")
			t.voteSell(voteHalf)
		}
	}

	lastK, prevK := lastTwo(c.stochK)
	lastD, prevD := lastTwo(c.stochD)
	if len(c.stochK) >= 2 && len(c.stochD) >= 2 && lastK > 0 && lastD > 0 {
		if lastK > lastD && prevK <= prevD {
			t.addFactor("stoch_bullish_crossover", lastK-lastD, "Stochastic %K crossed above %D, bullish signal")
			t.voteBuy(voteStandard)
		} else if lastK < lastD && prevK >= prevD {
			t.addFactor("stoch_bearish_crossover", lastD-lastK, "Stochastic %K crossed below %D, bearish signal")
			t.voteSell(voteStandard)
		}
		if lastK > 80 && lastD > 80 {
			t.addFactor("stoch_overbought", lastK, "Stochastic overbought, potential reversal")
			t.voteSell(voteStandard)
		} else if lastK < 20 && lastD < 20 {
			t.addFactor("stoch_oversold", lastK, "Stochastic oversold, potential reversal")
			t.voteBuy(voteStandard)
		}
	}
	t.total += momentumVotes
}

// scoreVolatility 波动组：布林带与 ATR。共 3 票（ATR 因子不投票，仅供下游取值）。
func scoreVolatility(t *tally, c columns, atrPeriod int) {
	n := len(c.closes)
	if n == 0 {
		return
	}
	lastClose := c.closes[n-1]

	bbU, bbM, bbL := last(c.bbUpper), last(c.bbMiddle), last(c.bbLower)
	if bbM > 0 {
		width := (bbU - bbL) / bbM
		t.addFactor("bollinger_band_width", width, fmt.Sprintf("Bollinger Band width: %.4f", width))
		if lastClose < bbL {
			t.addFactor("price_below_lower_bb", bbL/lastClose, "Price below lower Bollinger Band, potential oversold condition")
			t.voteBuy(voteStandard)
		} else if lastClose > bbU {
			t.addFactor("price_above_upper_bb", lastClose/bbU, "Price above upper Bollinger Band, potential overbought condition")
			t.voteSell(voteStandard)
		}
	}

	atrSeries := talib.Atr(c.highs, c.lows, c.closes, atrPeriod)
	if atr := last(atrSeries); atr > 0 && lastClose > 0 {
		atrPct := atr / lastClose * 100
		t.addFactor("atr", atr, fmt.Sprintf("ATR: %.5f (%.2f%% of price)", atr, atrPct))
		if atrPct > 1.0 {
			t.addFactor("high_volatility", atrPct, "High volatility, trend continuation more likely")
		} else if atrPct < 0.3 {
			t.addFactor("low_volatility", atrPct, "Low volatility, potential breakout imminent")
		}
	}
	t.total += volVotes
}

// scoreSupportResistance 支撑阻力组：摆动点距离与风报比。共 3 票。
func scoreSupportResistance(t *tally, recent []market.Candle, window int) {
	if len(recent) <= window*2 {
		return
	}
	lastClose := recent[len(recent)-1].Close
	if lastClose <= 0 {
		return
	}
	highsIdx, lowsIdx := swingPoints(recent, window)

	var nearestResistance, nearestSupport float64
	for _, i := range highsIdx {
		level := recent[i].High
		if level > lastClose && (nearestResistance == 0 || level < nearestResistance) {
			nearestResistance = level
		}
	}
	for _, i := range lowsIdx {
		level := recent[i].Low
		if level < lastClose && level > nearestSupport {
			nearestSupport = level
		}
	}

	if nearestResistance > 0 {
		distPct := (nearestResistance - lastClose) / lastClose * 100
		t.addFactor("nearest_resistance", nearestResistance,
			fmt.Sprintf("Nearest resistance at %.5f (%.2f%% away)", nearestResistance, distPct))
		if distPct < 0.5 {
			t.addFactor("close_to_resistance", distPct, "Price very close to resistance, potential reversal point")
			t.voteSell(voteStandard)
		}
	}
	if nearestSupport > 0 {
		distPct := (lastClose - nearestSupport) / lastClose * 100
		t.addFactor("nearest_support", nearestSupport,
			fmt.Sprintf("Nearest support at %.5f (%.2f%% away)", nearestSupport, distPct))
		if distPct < 0.5 {
			t.addFactor("close_to_support", distPct, "Price very close to support, potential reversal point")
			t.voteBuy(voteStandard)
		}
	}

	if nearestSupport > 0 && nearestResistance > 0 {
		risk := (lastClose - nearestSupport) / lastClose
		reward := (nearestResistance - lastClose) / lastClose
		rr := 0.0
		if risk > 0 {
			rr = reward / risk
		}
		t.addFactor("risk_reward_ratio", rr, fmt.Sprintf("Risk-reward ratio: %.2f", rr))
		if rr > 2.0 {
			t.addFactor("favorable_risk_reward_long", rr, "Favorable risk-reward for long position")
			t.voteBuy(voteStandard)
		} else if rr > 0 && rr < 0.5 {
			t.addFactor("unfavorable_risk_reward_long", rr, "Unfavorable risk-reward for long position")
			t.voteSell(voteStandard)
		}
	}
	t.total += srVotes
}

// swingPoints 返回摆动高点与低点的下标：某根 K 线的高点严格高于两侧各 window
// 根的高点即为摆动高点（低点对称）。
func swingPoints(candles []market.Candle, window int) (highs, lows []int) {
	for i := window; i < len(candles)-window; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= window; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isHigh = false
			}
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}

// last 返回序列末尾最后一个有效值（talib 暖机段为 0，NaN/Inf 跳过）。
func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

// lastTwo 返回末尾两个值（不足时为 0）。
func lastTwo(series []float64) (lastVal, prevVal float64) {
	n := len(series)
	if n >= 1 {
		lastVal = series[n-1]
	}
	if n >= 2 {
		prevVal = series[n-2]
	}
	return lastVal, prevVal
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
