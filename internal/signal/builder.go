package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"forexjoey/internal/analysis"
	"forexjoey/internal/decision"
	"forexjoey/internal/market"
)

// 中文说明：
// 信号构建器。决策通过置信门槛后，按波动单位推出入场/止损/止盈。
// 止损 1.5 倍波动单位、止盈 2.5 倍，收益侧距离恒大于风险侧。
// 波动单位优先取技术观点里的 atr 因子，否则退化为入场价的 0.5%。

const (
	MinConfidence  = 0.65
	stopLossMult   = 1.5
	takeProfitMult = 2.5
	defaultVolPct  = 0.005
)

// expectedDurations 按周期估算的持仓时长。
var expectedDurations = map[string]string{
	"M15": "2-8 hours",
	"H1":  "1-2 days",
	"H4":  "2-5 days",
	"D1":  "1-3 weeks",
	"W1":  "3-8 weeks",
}

// Build 从融合决策构建信号。方向 NEUTRAL 或置信不足时返回带原因的抑制结果。
func Build(d decision.CombinedDecision, quote market.PriceQuote, now time.Time) Result {
	if d.Direction == analysis.Neutral || d.Confidence < MinConfidence {
		return Result{
			Generated: false,
			Reason:    fmt.Sprintf("direction is %s or confidence too low (%.2f < %.2f)", d.Direction, d.Confidence, MinConfidence),
		}
	}
	if now.IsZero() {
		now = time.Now()
	}

	entry := quote.Ask
	if d.Direction == analysis.Sell {
		entry = quote.Bid
	}

	vol := volatilityUnit(d.TechnicalFactors, entry)

	var stopLoss, takeProfit float64
	if d.Direction == analysis.Buy {
		stopLoss = entry - vol*stopLossMult
		takeProfit = entry + vol*takeProfitMult
	} else {
		stopLoss = entry + vol*stopLossMult
		takeProfit = entry - vol*takeProfitMult
	}

	risk := math.Abs(entry - stopLoss)
	reward := math.Abs(takeProfit - entry)
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}

	dur, ok := expectedDurations[market.NormalizeTimeframe(d.Timeframe)]
	if !ok {
		dur = "Unknown"
	}

	s := &Signal{
		ID:                 uuid.NewString(),
		Pair:               d.Pair,
		Timeframe:          d.Timeframe,
		Direction:          d.Direction,
		EntryPrice:         entry,
		StopLoss:           stopLoss,
		TakeProfit:         takeProfit,
		RiskReward:         rr,
		Confidence:         d.Confidence,
		ExpectedDuration:   dur,
		Summary:            d.Summary,
		TechnicalFactors:   d.TechnicalFactors,
		FundamentalFactors: d.FundamentalFactors,
		SentimentFactors:   d.SentimentFactors,
		EconomicFactors:    d.EconomicFactors,
		Reasoning:          d.Reasoning,
		DecidedBy:          d.DecidedBy,
		Status:             StatusOpen,
		CreatedAt:          now,
	}
	return Result{Generated: true, Signal: s}
}

// volatilityUnit 取技术因子里的 atr 值；缺失或非正时按入场价 0.5% 兜底。
func volatilityUnit(factors []analysis.Factor, entry float64) float64 {
	if atr, ok := analysis.FloatFactor(factors, "atr"); ok && atr > 0 {
		return atr
	}
	return entry * defaultVolPct
}

// CloseOutcome 计算平仓结果。准确性只看方向是否兑现，点差收益按品种点值折算。
func CloseOutcome(s *Signal, exitPrice float64, closedAt time.Time) (Outcome, error) {
	if s == nil {
		return Outcome{}, fmt.Errorf("nil signal")
	}
	pair, err := market.ParsePair(s.Pair)
	if err != nil {
		return Outcome{}, err
	}
	if closedAt.IsZero() {
		closedAt = time.Now()
	}

	var pips float64
	var accurate bool
	if s.Direction == analysis.Buy {
		pips = market.PipsBetween(pair, s.EntryPrice, exitPrice)
		accurate = exitPrice >= s.EntryPrice
	} else {
		pips = market.PipsBetween(pair, exitPrice, s.EntryPrice)
		accurate = exitPrice <= s.EntryPrice
	}

	return Outcome{
		SignalID:       s.ID,
		ExitPrice:      exitPrice,
		ProfitLossPips: pips,
		WasAccurate:    accurate,
		ClosedAt:       closedAt,
	}, nil
}
