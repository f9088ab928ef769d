package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"forexjoey/internal/analysis"
)

// 融合提示词。四路观点整体序列化后交给推理服务，响应契约固定为
// CombinedDecision 的 JSON 形态。

const fusionSystemPrompt = `You are an AI-first forex trading analyst specializing in high-accuracy decision making.
Analyze multiple intelligence sources (technical, fundamental, sentiment, economic) for a forex pair and provide a comprehensive analysis.
Your analysis must be evidence-based, never make unsupported predictions, and clearly explain your reasoning.
Assign a confidence score (0.0-1.0) and a directional bias (BUY, SELL, or NEUTRAL) based on the combined evidence.`

const fusionResponseContract = `Respond with a JSON object only, using exactly this structure:
{
  "direction": "BUY/SELL/NEUTRAL",
  "confidence_score": 0.0-1.0,
  "summary": "Brief summary of the analysis",
  "technical_factors": [list of important technical factors],
  "fundamental_factors": [list of important fundamental factors],
  "sentiment_factors": [list of important sentiment factors],
  "economic_factors": [list of important economic events],
  "reasoning": "Detailed reasoning behind the decision"
}`

// BuildFusionPrompt 拼装融合请求的用户消息。
func BuildFusionPrompt(pair, timeframe string, sources SourceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENCY PAIR: %s\nTIMEFRAME: %s\n", pair, timeframe)
	writeOpinionBlock(&b, "TECHNICAL ANALYSIS", sources.Technical)
	writeOpinionBlock(&b, "FUNDAMENTAL ANALYSIS", sources.Fundamental)
	writeOpinionBlock(&b, "SENTIMENT ANALYSIS", sources.Sentiment)
	writeOpinionBlock(&b, "ECONOMIC CALENDAR ANALYSIS", sources.Economic)
	b.WriteString("\n")
	b.WriteString(fusionResponseContract)
	b.WriteString("\n")
	return b.String()
}

func writeOpinionBlock(b *strings.Builder, title string, op analysis.Opinion) {
	fmt.Fprintf(b, "\n%s:\n", title)
	data, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		fmt.Fprintf(b, "(unavailable: %v)\n", err)
		return
	}
	b.Write(data)
	b.WriteString("\n")
}
