package decision

import (
	"context"
	"time"

	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
)

// 中文说明：
// 融合引擎。主路径单次调用推理服务（有界超时、不重试），任何失败
// （传输、超时、非 JSON、契约违规）都落到 CombineFallback。
// 引擎自身无可变状态，可被多个货币对并发调用；兜底权重经
// PerformanceReader 只读获取。

// PerformanceReader 提供桶内已学习的融合权重。无该桶时返回 false。
type PerformanceReader interface {
	Weights(pair, timeframe string) (Weights, bool)
}

type Engine struct {
	Providers []provider.ModelProvider
	Perf      PerformanceReader // 可为 nil，则始终使用默认权重
	Timeout   time.Duration
	MaxTokens int
}

func NewEngine(providers []provider.ModelProvider, perf PerformanceReader, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{Providers: providers, Perf: perf, Timeout: timeout}
}

// Combine 融合四路观点。images 仅在所选 provider 支持视觉时附带。
func (e *Engine) Combine(ctx context.Context, pair, timeframe string, sources SourceSet, images []provider.ImageAttachment) CombinedDecision {
	if e == nil {
		return CombineFallback(pair, timeframe, sources, nil)
	}

	if p, ok := provider.FirstEnabled(e.Providers); ok {
		d, err := e.combineWithProvider(ctx, p, pair, timeframe, sources, images)
		if err == nil {
			return d
		}
		logger.Warnf("融合推理失败(%s %s, provider=%s)，使用确定性兜底: %v", pair, timeframe, p.ID(), err)
	}

	return CombineFallback(pair, timeframe, sources, e.bucketWeights(pair, timeframe))
}

func (e *Engine) combineWithProvider(ctx context.Context, p provider.ModelProvider, pair, timeframe string, sources SourceSet, images []provider.ImageAttachment) (CombinedDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	payload := provider.ChatPayload{
		System:     fusionSystemPrompt,
		User:       BuildFusionPrompt(pair, timeframe, sources),
		MaxTokens:  e.MaxTokens,
		ExpectJSON: p.ExpectsJSON(),
	}
	if p.SupportsVision() {
		payload.Images = images
	}

	raw, err := p.Call(ctx, payload)
	if err != nil {
		return CombinedDecision{}, err
	}
	d, err := ParseDecision(raw, pair, timeframe)
	if err != nil {
		return CombinedDecision{}, err
	}
	// 模型漏掉的因子槽位用原始观点补齐，保证落库的审计信息完整
	if len(d.TechnicalFactors) == 0 && len(d.FundamentalFactors) == 0 &&
		len(d.SentimentFactors) == 0 && len(d.EconomicFactors) == 0 {
		d.setFactors(sources)
	}
	d.DecidedBy = p.ID()
	return d, nil
}

func (e *Engine) bucketWeights(pair, timeframe string) Weights {
	if e.Perf == nil {
		return nil
	}
	if w, ok := e.Perf.Weights(pair, timeframe); ok && len(w) > 0 {
		return w
	}
	return nil
}
