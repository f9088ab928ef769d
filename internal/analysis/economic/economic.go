package economic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"forexjoey/internal/ai"
	"forexjoey/internal/analysis"
	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/logger"
	"forexjoey/internal/market"
)

// 中文说明：
// 经济日历分析器。事件列表由上游采集，本包只做筛选、排序与定向判断。
// 主路径把头部事件交给推理服务给出方向；推理不可用或返回不合规时，
// 走纯冲击分值的确定性兜底，两条路径输出同一 Opinion 契约。

// Event 单条日历事件。Impact 取 LOW/MEDIUM/HIGH。
type Event struct {
	Title    string    `json:"title"`
	Currency string    `json:"currency"`
	Impact   string    `json:"impact"`
	Forecast string    `json:"forecast"`
	Previous string    `json:"previous"`
	Time     time.Time `json:"time"`
}

var impactRank = map[string]int{"LOW": 0, "MEDIUM": 1, "HIGH": 2}
var impactValue = map[string]float64{"LOW": 0.2, "MEDIUM": 0.5, "HIGH": 1.0}

// Analyzer 可选携带推理服务；Reasoner 为 nil 时只走确定性路径。
type Analyzer struct {
	Reasoner provider.ModelProvider
	Timeout  time.Duration
	MaxTop   int     // 头部事件数，默认 5
	ScoreGap float64 // 方向判定所需的冲击分差，默认 0.3
}

// normalized 返回填好默认值的副本。同一 Analyzer 会被多路分析并发调用，
// 默认值只能落在副本上，不能写回共享实例。
func (a Analyzer) normalized() Analyzer {
	if a.MaxTop <= 0 {
		a.MaxTop = 5
	}
	if a.ScoreGap <= 0 {
		a.ScoreGap = 0.3
	}
	if a.Timeout <= 0 {
		a.Timeout = 60 * time.Second
	}
	return a
}

// Analyze 评估日历事件对货币对的方向影响。
func (a *Analyzer) Analyze(ctx context.Context, pair market.Pair, events []Event, now time.Time) analysis.Opinion {
	cfg := a.normalized()
	if now.IsZero() {
		now = time.Now()
	}

	top := selectTopEvents(pair, events, now, cfg.MaxTop)
	if len(top) == 0 {
		return analysis.Opinion{
			Source:     analysis.SourceEconomic,
			Direction:  analysis.Neutral,
			Confidence: 0,
			Factors: []analysis.Factor{{
				Name:           "no_events",
				Value:          pair.String(),
				Interpretation: "no relevant calendar events for either currency",
			}},
		}
	}

	if cfg.Reasoner != nil && cfg.Reasoner.Enabled() {
		if op, err := cfg.analyzeWithReasoner(ctx, pair, top, now); err == nil {
			return op
		} else {
			logger.Warnf("经济日历推理失败，使用确定性兜底: %v", err)
		}
	}
	return fallbackAnalysis(pair, top, cfg.ScoreGap)
}

// selectTopEvents 只保留基础/计价货币的事件，按冲击级别降序、距今时间升序取前 max 条。
func selectTopEvents(pair market.Pair, events []Event, now time.Time, max int) []Event {
	var relevant []Event
	for _, e := range events {
		cur := strings.ToUpper(strings.TrimSpace(e.Currency))
		if cur == pair.Base || cur == pair.Quote {
			relevant = append(relevant, e)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		ri := impactRank[strings.ToUpper(relevant[i].Impact)]
		rj := impactRank[strings.ToUpper(relevant[j].Impact)]
		if ri != rj {
			return ri > rj
		}
		di := now.Sub(relevant[i].Time).Abs()
		dj := now.Sub(relevant[j].Time).Abs()
		return di < dj
	})
	if len(relevant) > max {
		relevant = relevant[:max]
	}
	return relevant
}

// fallbackAnalysis 纯冲击分值比较：哪边货币的事件冲击总分高，哪边波动预期大。
func fallbackAnalysis(pair market.Pair, events []Event, gap float64) analysis.Opinion {
	var baseScore, quoteScore float64
	factors := make([]analysis.Factor, 0, len(events))
	for _, e := range events {
		impact := strings.ToUpper(strings.TrimSpace(e.Impact))
		v, ok := impactValue[impact]
		if !ok {
			impact, v = "LOW", impactValue["LOW"]
		}
		cur := strings.ToUpper(strings.TrimSpace(e.Currency))
		if cur == pair.Base {
			baseScore += v
		} else {
			quoteScore += v
		}
		factors = append(factors, analysis.Factor{
			Name:           "event",
			Value:          map[string]any{"title": e.Title, "currency": cur, "impact": impact},
			Interpretation: fmt.Sprintf("%s impact event for %s", impact, cur),
		})
	}

	direction := analysis.Neutral
	confidence := 0.5
	switch {
	case baseScore > quoteScore+gap:
		direction = analysis.Buy
		confidence = math.Min(0.7, 0.5+(baseScore-quoteScore)*0.2)
	case quoteScore > baseScore+gap:
		direction = analysis.Sell
		confidence = math.Min(0.7, 0.5+(quoteScore-baseScore)*0.2)
	}

	factors = append(factors, analysis.Factor{
		Name:           "impact_balance",
		Value:          map[string]any{"base_score": baseScore, "quote_score": quoteScore},
		Interpretation: fmt.Sprintf("calendar impact %s %.2f vs %s %.2f", pair.Base, baseScore, pair.Quote, quoteScore),
	})

	return analysis.Opinion{
		Source:     analysis.SourceEconomic,
		Direction:  direction,
		Confidence: confidence,
		Factors:    factors,
	}
}

const reasonerSystemPrompt = `You are a forex analyst specializing in economic calendar analysis.
Analyze upcoming and recent economic events for a currency pair and determine their likely directional impact.
Focus on high-impact events, surprises versus forecast, and the relative importance of events for each currency.
Respond with a JSON object only: {"direction": "BUY/SELL/NEUTRAL", "confidence_score": 0.0-1.0, "factors": [{"name": "...", "value": "...", "interpretation": "..."}]}`

func (a *Analyzer) analyzeWithReasoner(ctx context.Context, pair market.Pair, events []Event, now time.Time) (analysis.Opinion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENCY PAIR: %s\nBASE CURRENCY: %s\nQUOTE CURRENCY: %s\n\nECONOMIC EVENTS:\n", pair.String(), pair.Base, pair.Quote)
	for i, e := range events {
		hours := now.Sub(e.Time).Hours()
		tense := "from now"
		if hours > 0 {
			tense = "ago"
		}
		fmt.Fprintf(&b, "Event %d:\n- Name: %s\n- Currency: %s\n- Impact: %s\n- Forecast: %s\n- Previous: %s\n- Time: %s (%.1f hours %s)\n",
			i+1, e.Title, e.Currency, e.Impact, e.Forecast, e.Previous, e.Time.Format(time.RFC3339), math.Abs(hours), tense)
	}
	fmt.Fprintf(&b, "\nBUY means %s strengthens against %s; SELL the opposite; NEUTRAL means no clear bias.\n", pair.Base, pair.Quote)

	raw, err := a.Reasoner.Call(ctx, provider.ChatPayload{
		System:     reasonerSystemPrompt,
		User:       b.String(),
		ExpectJSON: a.Reasoner.ExpectsJSON(),
	})
	if err != nil {
		return analysis.Opinion{}, analysis.WrapSourceErr(analysis.SourceEconomic, err)
	}

	obj, ok := ai.ExtractJSONObject(raw)
	if !ok {
		return analysis.Opinion{}, analysis.WrapSourceErr(analysis.SourceEconomic, fmt.Errorf("no JSON object in reasoner reply"))
	}
	var parsed struct {
		Direction  string            `json:"direction"`
		Confidence float64           `json:"confidence_score"`
		Factors    []analysis.Factor `json:"factors"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return analysis.Opinion{}, analysis.WrapSourceErr(analysis.SourceEconomic, err)
	}
	dir, ok := analysis.ParseDirection(parsed.Direction)
	if !ok {
		return analysis.Opinion{}, analysis.WrapSourceErr(analysis.SourceEconomic, fmt.Errorf("unrecognized direction %q", parsed.Direction))
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return analysis.Opinion{}, analysis.WrapSourceErr(analysis.SourceEconomic, fmt.Errorf("confidence %v out of range", parsed.Confidence))
	}
	return analysis.Opinion{
		Source:     analysis.SourceEconomic,
		Direction:  dir,
		Confidence: parsed.Confidence,
		Factors:    parsed.Factors,
	}, nil
}
