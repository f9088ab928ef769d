package decision

import (
	"fmt"

	"forexjoey/internal/analysis"
)

// 中文说明：
// 确定性兜底融合。纯函数、可复现：加权投票 → ±0.2 阈值定方向 →
// 同向源的置信均值作为最终置信（无同向源时 0.5）。
// 推理服务的任何失败都落到这里，用户永远拿得到决策。

const directionThreshold = 0.2

// CombineFallback 加权投票融合。weights 缺某个源时按 0 处理。
func CombineFallback(pair, timeframe string, sources SourceSet, weights Weights) CombinedDecision {
	if len(weights) == 0 {
		weights = DefaultFallbackWeights()
	}

	combined := 0.0
	for _, op := range sources.Opinions() {
		combined += op.Direction.Value() * weights[op.Source]
	}

	direction := analysis.Neutral
	switch {
	case combined > directionThreshold:
		direction = analysis.Buy
	case combined < -directionThreshold:
		direction = analysis.Sell
	}

	// 置信度只看与最终方向一致的源
	var sum float64
	var agreeing int
	for _, op := range sources.Opinions() {
		if op.Direction == direction {
			sum += op.Confidence
			agreeing++
		}
	}
	confidence := 0.5
	if direction != analysis.Neutral && agreeing > 0 {
		confidence = sum / float64(agreeing)
	}

	d := CombinedDecision{
		Pair:       pair,
		Timeframe:  timeframe,
		Direction:  direction,
		Confidence: confidence,
		Summary:    fmt.Sprintf("%s signal for %s on %s with %.2f confidence", direction, pair, timeframe, confidence),
		Reasoning: fmt.Sprintf(
			"Technical analysis indicates %s, fundamental analysis indicates %s, sentiment analysis indicates %s, and economic calendar analysis indicates %s.",
			sources.Technical.Direction, sources.Fundamental.Direction, sources.Sentiment.Direction, sources.Economic.Direction),
		DecidedBy: "fallback",
	}
	d.setFactors(sources)
	return d
}
