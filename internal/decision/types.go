package decision

import (
	"forexjoey/internal/analysis"
)

// 中文说明：
// 融合阶段的数据结构。CombinedDecision 携带完整的四路证据与推理文本，
// 随信号落库，供事后复盘与归因。

// CombinedDecision 四路观点融合后的唯一决策。
type CombinedDecision struct {
	Pair               string             `json:"currency_pair"`
	Timeframe          string             `json:"timeframe"`
	Direction          analysis.Direction `json:"direction"`
	Confidence         float64            `json:"confidence_score"`
	Summary            string             `json:"summary"`
	TechnicalFactors   []analysis.Factor  `json:"technical_factors"`
	FundamentalFactors []analysis.Factor  `json:"fundamental_factors"`
	SentimentFactors   []analysis.Factor  `json:"sentiment_factors"`
	EconomicFactors    []analysis.Factor  `json:"economic_factors"`
	Reasoning          string             `json:"reasoning"`
	DecidedBy          string             `json:"decided_by,omitempty"` // provider ID 或 "fallback"
}

// SourceSet 一次融合请求的四路输入，字段齐全后才可进入融合。
type SourceSet struct {
	Technical   analysis.Opinion
	Fundamental analysis.Opinion
	Sentiment   analysis.Opinion
	Economic    analysis.Opinion
}

// Opinions 按固定源顺序展开。
func (s SourceSet) Opinions() []analysis.Opinion {
	return []analysis.Opinion{s.Technical, s.Fundamental, s.Sentiment, s.Economic}
}

// Weights 四个源的融合权重。
type Weights map[string]float64

// DefaultFallbackWeights 桶内没有学习到的权重时使用的静态权重。
func DefaultFallbackWeights() Weights {
	return Weights{
		analysis.SourceTechnical:   0.4,
		analysis.SourceFundamental: 0.3,
		analysis.SourceSentiment:   0.15,
		analysis.SourceEconomic:    0.15,
	}
}

// factorsBySource 把各源因子塞进决策对应的槽位。
func (d *CombinedDecision) setFactors(s SourceSet) {
	d.TechnicalFactors = s.Technical.Factors
	d.FundamentalFactors = s.Fundamental.Factors
	d.SentimentFactors = s.Sentiment.Factors
	d.EconomicFactors = s.Economic.Factors
}
