package decision

import (
	"math"
	"testing"

	"forexjoey/internal/analysis"
)

func opinion(source string, dir analysis.Direction, conf float64) analysis.Opinion {
	return analysis.Opinion{
		Source:     source,
		Direction:  dir,
		Confidence: conf,
		Factors:    []analysis.Factor{{Name: source + "_factor", Interpretation: "evidence"}},
	}
}

func TestCombineFallbackWeightedVote(t *testing.T) {
	// technical BUY 0.4 + fundamental SELL -0.3 + economic BUY 0.15 = 0.25 > 0.2
	sources := SourceSet{
		Technical:   opinion(analysis.SourceTechnical, analysis.Buy, 0.8),
		Fundamental: opinion(analysis.SourceFundamental, analysis.Sell, 0.6),
		Sentiment:   opinion(analysis.SourceSentiment, analysis.Neutral, 0.5),
		Economic:    opinion(analysis.SourceEconomic, analysis.Buy, 0.7),
	}
	d := CombineFallback("EUR/USD", "H1", sources, nil)

	if d.Direction != analysis.Buy {
		t.Fatalf("方向 = %s, 期望 BUY", d.Direction)
	}
	// 同向源 technical(0.8) 与 economic(0.7) 的均值
	if math.Abs(d.Confidence-0.75) > 1e-9 {
		t.Fatalf("置信度 = %v, 期望 0.75", d.Confidence)
	}
	if d.DecidedBy != "fallback" {
		t.Fatalf("DecidedBy = %q, 期望 fallback", d.DecidedBy)
	}
	if len(d.TechnicalFactors) != 1 || d.TechnicalFactors[0].Name != "technical_factor" {
		t.Fatalf("技术因子未透传: %v", d.TechnicalFactors)
	}
}

func TestCombineFallbackThresholdBoundary(t *testing.T) {
	// 加权和恰好 0.2 不过阈值
	sources := SourceSet{
		Technical:   opinion(analysis.SourceTechnical, analysis.Buy, 0.9),
		Fundamental: opinion(analysis.SourceFundamental, analysis.Neutral, 0.5),
		Sentiment:   opinion(analysis.SourceSentiment, analysis.Neutral, 0.5),
		Economic:    opinion(analysis.SourceEconomic, analysis.Neutral, 0.5),
	}
	w := Weights{analysis.SourceTechnical: 0.2}
	d := CombineFallback("EUR/USD", "H1", sources, w)
	if d.Direction != analysis.Neutral {
		t.Fatalf("加权和 0.2 应判 NEUTRAL, 实际 %s", d.Direction)
	}
	if d.Confidence != 0.5 {
		t.Fatalf("NEUTRAL 置信度必须为 0.5, 实际 %v", d.Confidence)
	}

	// 略过阈值即判方向
	w = Weights{analysis.SourceTechnical: 0.21}
	d = CombineFallback("EUR/USD", "H1", sources, w)
	if d.Direction != analysis.Buy {
		t.Fatalf("加权和 0.21 应判 BUY, 实际 %s", d.Direction)
	}
	if math.Abs(d.Confidence-0.9) > 1e-9 {
		t.Fatalf("唯一同向源时置信度取其自身 0.9, 实际 %v", d.Confidence)
	}
}

func TestCombineFallbackSellSide(t *testing.T) {
	sources := SourceSet{
		Technical:   opinion(analysis.SourceTechnical, analysis.Sell, 0.7),
		Fundamental: opinion(analysis.SourceFundamental, analysis.Sell, 0.9),
		Sentiment:   opinion(analysis.SourceSentiment, analysis.Neutral, 0.5),
		Economic:    opinion(analysis.SourceEconomic, analysis.Neutral, 0.5),
	}
	d := CombineFallback("GBP/JPY", "H4", sources, nil)
	if d.Direction != analysis.Sell {
		t.Fatalf("方向 = %s, 期望 SELL", d.Direction)
	}
	if math.Abs(d.Confidence-0.8) > 1e-9 {
		t.Fatalf("置信度 = %v, 期望 0.8", d.Confidence)
	}
}

func TestCombineFallbackAllNeutral(t *testing.T) {
	sources := SourceSet{
		Technical:   opinion(analysis.SourceTechnical, analysis.Neutral, 0.9),
		Fundamental: opinion(analysis.SourceFundamental, analysis.Neutral, 0.1),
		Sentiment:   opinion(analysis.SourceSentiment, analysis.Neutral, 0.3),
		Economic:    opinion(analysis.SourceEconomic, analysis.Neutral, 0.7),
	}
	d := CombineFallback("EUR/USD", "D1", sources, nil)
	if d.Direction != analysis.Neutral {
		t.Fatalf("全中性应判 NEUTRAL, 实际 %s", d.Direction)
	}
	// 中性决策的置信度固定 0.5，与各源自身置信无关
	if d.Confidence != 0.5 {
		t.Fatalf("置信度 = %v, 期望 0.5", d.Confidence)
	}
}

func TestCombineFallbackEmptyWeightsFallsBackToDefault(t *testing.T) {
	sources := SourceSet{
		Technical:   opinion(analysis.SourceTechnical, analysis.Buy, 0.8),
		Fundamental: opinion(analysis.SourceFundamental, analysis.Buy, 0.8),
		Sentiment:   opinion(analysis.SourceSentiment, analysis.Buy, 0.8),
		Economic:    opinion(analysis.SourceEconomic, analysis.Buy, 0.8),
	}
	d := CombineFallback("EUR/USD", "H1", sources, Weights{})
	if d.Direction != analysis.Buy || math.Abs(d.Confidence-0.8) > 1e-9 {
		t.Fatalf("空权重应退回默认权重: %s %.2f", d.Direction, d.Confidence)
	}
}
