package decision

import (
	"encoding/json"
	"fmt"

	"forexjoey/internal/ai"
	"forexjoey/internal/analysis"
)

// SchemaError 推理服务返回了无法解析或不合契约的内容。
// 调用方视同外部源失败，落到确定性兜底。
type SchemaError struct {
	Reason string
	Raw    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reasoner schema violation: %s", e.Reason)
}

func schemaErr(raw, format string, args ...any) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...), Raw: ai.TrimTo(raw, 2000)}
}

// ParseDecision 宽松提取并严格校验推理服务的融合响应。
// 方向与置信必须合规；因子列表缺失按空处理。
func ParseDecision(raw, pair, timeframe string) (CombinedDecision, error) {
	obj, ok := ai.ExtractJSONObject(raw)
	if !ok {
		return CombinedDecision{}, schemaErr(raw, "no JSON object in reply")
	}

	var parsed struct {
		Direction          string            `json:"direction"`
		Confidence         any               `json:"confidence_score"`
		Summary            string            `json:"summary"`
		TechnicalFactors   []analysis.Factor `json:"technical_factors"`
		FundamentalFactors []analysis.Factor `json:"fundamental_factors"`
		SentimentFactors   []analysis.Factor `json:"sentiment_factors"`
		EconomicFactors    []analysis.Factor `json:"economic_factors"`
		Reasoning          string            `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return CombinedDecision{}, schemaErr(raw, "invalid JSON: %v", err)
	}

	dir, ok := analysis.ParseDirection(parsed.Direction)
	if !ok {
		return CombinedDecision{}, schemaErr(raw, "unrecognized direction %q", parsed.Direction)
	}
	conf, ok := ai.ForgivingFloat(parsed.Confidence, true)
	if !ok {
		return CombinedDecision{}, schemaErr(raw, "missing confidence_score")
	}
	if conf < 0 || conf > 1 {
		return CombinedDecision{}, schemaErr(raw, "confidence_score %v out of [0,1]", conf)
	}

	return CombinedDecision{
		Pair:               pair,
		Timeframe:          timeframe,
		Direction:          dir,
		Confidence:         conf,
		Summary:            parsed.Summary,
		TechnicalFactors:   parsed.TechnicalFactors,
		FundamentalFactors: parsed.FundamentalFactors,
		SentimentFactors:   parsed.SentimentFactors,
		EconomicFactors:    parsed.EconomicFactors,
		Reasoning:          parsed.Reasoning,
	}, nil
}
