package fundamental

import (
	"fmt"
	"math"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
)

// 中文说明：
// 宏观基本面分析器。输入是上游采集好的两种货币的宏观快照
// （政策利率、GDP 增速、近期数据超预期程度），输出确定性的 Opinion。
// 评分 = 利差 0.5 + 增长差 0.25 + 数据意外 0.25，合成分 ∈ [-1,1]，
// 正值看多基础货币。

// Surprise 一条宏观数据的实际值与预期值对比。
type Surprise struct {
	Indicator string  `json:"indicator"`
	Currency  string  `json:"currency"`
	Actual    float64 `json:"actual"`
	Forecast  float64 `json:"forecast"`
}

// Snapshot 货币对双边的宏观状态。利率与增速均为百分比值（如 5.25）。
type Snapshot struct {
	BaseRate        float64    `json:"base_rate"`
	QuoteRate       float64    `json:"quote_rate"`
	BaseGDPGrowth   float64    `json:"base_gdp_growth"`
	QuoteGDPGrowth  float64    `json:"quote_gdp_growth"`
	Surprises       []Surprise `json:"surprises"`
	HasRates        bool       `json:"has_rates"`
	HasGrowth       bool       `json:"has_growth"`
}

const (
	weightRates     = 0.5
	weightGrowth    = 0.25
	weightSurprises = 0.25

	directionThreshold = 0.2
)

// Analyze 把宏观快照折算为方向观点。无任何可用数据时返回零置信中性。
func Analyze(pair market.Pair, snap Snapshot) analysis.Opinion {
	var (
		score       float64
		totalWeight float64
		factors     []analysis.Factor
	)

	if snap.HasRates {
		diff := snap.BaseRate - snap.QuoteRate
		// 2 个百分点的利差即视为满分信号
		contrib := clamp(diff/2.0, -1, 1)
		score += contrib * weightRates
		totalWeight += weightRates
		factors = append(factors, analysis.Factor{
			Name:           "rate_differential",
			Value:          diff,
			Interpretation: fmt.Sprintf("policy rate %s %.2f%% vs %s %.2f%%", pair.Base, snap.BaseRate, pair.Quote, snap.QuoteRate),
		})
	}

	if snap.HasGrowth {
		diff := snap.BaseGDPGrowth - snap.QuoteGDPGrowth
		contrib := clamp(diff/2.0, -1, 1)
		score += contrib * weightGrowth
		totalWeight += weightGrowth
		factors = append(factors, analysis.Factor{
			Name:           "growth_differential",
			Value:          diff,
			Interpretation: fmt.Sprintf("GDP growth %s %.2f%% vs %s %.2f%%", pair.Base, snap.BaseGDPGrowth, pair.Quote, snap.QuoteGDPGrowth),
		})
	}

	if len(snap.Surprises) > 0 {
		var sum float64
		var counted int
		for _, s := range snap.Surprises {
			v, ok := surpriseScore(s)
			if !ok {
				continue
			}
			sign := 0.0
			switch s.Currency {
			case pair.Base:
				sign = 1
			case pair.Quote:
				sign = -1
			default:
				continue
			}
			sum += v * sign
			counted++
			factors = append(factors, analysis.Factor{
				Name:           "macro_surprise",
				Value:          map[string]any{"indicator": s.Indicator, "currency": s.Currency, "actual": s.Actual, "forecast": s.Forecast},
				Interpretation: surpriseInterpretation(s),
			})
		}
		if counted > 0 {
			score += (sum / float64(counted)) * weightSurprises
			totalWeight += weightSurprises
		}
	}

	if totalWeight == 0 {
		return analysis.Opinion{
			Source:     analysis.SourceFundamental,
			Direction:  analysis.Neutral,
			Confidence: 0,
			Factors: []analysis.Factor{{
				Name:           "no_data",
				Value:          pair.String(),
				Interpretation: "no fundamental data available",
			}},
		}
	}

	// 归一化到满权重口径，避免缺数据时分值被系统性压低
	score = score / totalWeight

	direction := analysis.Neutral
	confidence := 0.5
	switch {
	case score > directionThreshold:
		direction = analysis.Buy
	case score < -directionThreshold:
		direction = analysis.Sell
	}
	if direction != analysis.Neutral {
		confidence = 0.5 + math.Min(0.3, math.Abs(score)*0.5)
	}

	factors = append(factors, analysis.Factor{
		Name:           "fundamental_score",
		Value:          score,
		Interpretation: fmt.Sprintf("composite fundamental score %.2f for %s", score, pair.String()),
	})

	return analysis.Opinion{
		Source:     analysis.SourceFundamental,
		Direction:  direction,
		Confidence: confidence,
		Factors:    factors,
	}
}

// surpriseScore 实际与预期的相对偏离，截断到 [-1,1]。预期为 0 时退化为符号。
func surpriseScore(s Surprise) (float64, bool) {
	diff := s.Actual - s.Forecast
	if diff == 0 {
		return 0, true
	}
	denom := math.Abs(s.Forecast)
	if denom == 0 {
		if diff > 0 {
			return 1, true
		}
		return -1, true
	}
	return clamp(diff/denom, -1, 1), true
}

func surpriseInterpretation(s Surprise) string {
	rel := "in line with"
	if s.Actual > s.Forecast {
		rel = "above"
	} else if s.Actual < s.Forecast {
		rel = "below"
	}
	return fmt.Sprintf("%s %s came in %s forecast (%.2f vs %.2f)", s.Currency, s.Indicator, rel, s.Actual, s.Forecast)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
