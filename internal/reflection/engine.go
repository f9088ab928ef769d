package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forexjoey/internal/ai"
	"forexjoey/internal/analysis"
	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
	"forexjoey/internal/signal"
)

// 中文说明：
// 复盘引擎。信号平仓后向推理服务请求逐源归因；推理失败时构造
// 零归因的降级报告。无论归因来自哪条路径，桶更新都必须进行——
// 学习只依赖 was_accurate 这一个硬事实，归因只是锦上添花。

// Report 一次复盘的产出。
type Report struct {
	SignalID   string                       `json:"signal_id"`
	Reflection string                       `json:"reflection"`
	Factors    map[string]SourceAttribution `json:"factors_analysis"`
	Lessons    []string                     `json:"lessons_learned"`
	Degraded   bool                         `json:"degraded,omitempty"`
}

type Engine struct {
	Providers []provider.ModelProvider
	Model     *Model
	Timeout   time.Duration
}

func NewEngine(providers []provider.ModelProvider, model *Model, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{Providers: providers, Model: model, Timeout: timeout}
}

// Reflect 复盘一个已平仓信号：生成归因报告并更新绩效桶。
// 返回报告、更新后的桶快照；桶更新失败才返回错误。
func (e *Engine) Reflect(ctx context.Context, s *signal.Signal, o signal.Outcome) (Report, *PerformanceBucket, error) {
	if s == nil {
		return Report{}, nil, fmt.Errorf("nil signal")
	}

	report := e.buildReport(ctx, s, o)

	bucket, err := e.Model.Apply(s.Pair, s.Timeframe, o.WasAccurate, report.Factors, o.ClosedAt)
	if err != nil {
		return report, nil, fmt.Errorf("更新绩效桶失败: %w", err)
	}
	logger.Infof("复盘完成 %s %s: accurate=%v total=%d accuracy=%.2f",
		s.Pair, s.Timeframe, o.WasAccurate, bucket.TotalSignals, bucket.AccuracyRate)
	return report, bucket, nil
}

func (e *Engine) buildReport(ctx context.Context, s *signal.Signal, o signal.Outcome) Report {
	if p, ok := provider.FirstEnabled(e.Providers); ok {
		r, err := e.reflectWithProvider(ctx, p, s, o)
		if err == nil {
			return r
		}
		logger.Warnf("复盘推理失败(%s, provider=%s)，使用降级报告: %v", s.ID, p.ID(), err)
		return degradedReport(s.ID, err)
	}
	return degradedReport(s.ID, fmt.Errorf("no reasoning provider available"))
}

// degradedReport 零归因报告。权重经 0 冲击混合后再归一化，净效果不变。
func degradedReport(signalID string, cause error) Report {
	factors := make(map[string]SourceAttribution, len(analysis.Sources))
	for _, src := range analysis.Sources {
		factors[src] = SourceAttribution{Impact: 0, Accuracy: 0, Notes: "attribution unavailable"}
	}
	return Report{
		SignalID:   signalID,
		Reflection: fmt.Sprintf("reflection unavailable: %v", cause),
		Factors:    factors,
		Lessons:    []string{"reasoning service unavailable; outcome recorded without per-source attribution"},
		Degraded:   true,
	}
}

const reflectionSystemPrompt = `You are an AI forex trading system that constantly learns from trade outcomes.
Analyze a completed trade signal and its actual outcome, then reflect on what went well, what went wrong, and how to improve future predictions.
Be specific, honest, and analytical. Focus on identifying patterns that can improve the decision-making process.
Respond with a JSON object only:
{
  "reflection": "overall analysis of the trade",
  "factors_analysis": {
    "technical": {"impact": 0.0-1.0, "accuracy": 0.0-1.0, "notes": "..."},
    "fundamental": {"impact": 0.0-1.0, "accuracy": 0.0-1.0, "notes": "..."},
    "sentiment": {"impact": 0.0-1.0, "accuracy": 0.0-1.0, "notes": "..."},
    "economic": {"impact": 0.0-1.0, "accuracy": 0.0-1.0, "notes": "..."}
  },
  "lessons_learned": ["..."]
}`

func (e *Engine) reflectWithProvider(ctx context.Context, p provider.ModelProvider, s *signal.Signal, o signal.Outcome) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	user, err := buildReflectionPrompt(s, o)
	if err != nil {
		return Report{}, err
	}
	raw, err := p.Call(ctx, provider.ChatPayload{
		System:     reflectionSystemPrompt,
		User:       user,
		ExpectJSON: p.ExpectsJSON(),
	})
	if err != nil {
		return Report{}, err
	}
	return parseReport(raw, s.ID)
}

func buildReflectionPrompt(s *signal.Signal, o signal.Outcome) (string, error) {
	sigJSON, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	outJSON, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return "", err
	}
	result := "LOSS"
	if o.WasAccurate {
		result = "WIN"
	}
	return fmt.Sprintf(
		"ORIGINAL SIGNAL:\n%s\n\nACTUAL OUTCOME:\n%s\n\nPERFORMANCE SUMMARY:\n- Result: %s\n- Profit/Loss: %.1f pips\n",
		sigJSON, outJSON, result, o.ProfitLossPips), nil
}

func parseReport(raw, signalID string) (Report, error) {
	obj, ok := ai.ExtractJSONObject(raw)
	if !ok {
		return Report{}, fmt.Errorf("no JSON object in reply")
	}
	var parsed struct {
		Reflection string                       `json:"reflection"`
		Factors    map[string]SourceAttribution `json:"factors_analysis"`
		Lessons    []string                     `json:"lessons_learned"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return Report{}, err
	}
	if len(parsed.Factors) == 0 {
		return Report{}, fmt.Errorf("factors_analysis missing")
	}
	factors := make(map[string]SourceAttribution, len(analysis.Sources))
	for _, src := range analysis.Sources {
		attr := parsed.Factors[src]
		attr.Impact = clamp01(attr.Impact)
		attr.Accuracy = clamp01(attr.Accuracy)
		factors[src] = attr
	}
	return Report{
		SignalID:   signalID,
		Reflection: parsed.Reflection,
		Factors:    factors,
		Lessons:    parsed.Lessons,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
