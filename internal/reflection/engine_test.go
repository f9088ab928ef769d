package reflection

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"forexjoey/internal/analysis"
	"forexjoey/internal/gateway/provider"
	"forexjoey/internal/signal"
)

// fakeProvider 伪造推理服务，按预设回复或报错。
type fakeProvider struct {
	id    string
	reply string
	err   error
	calls int
}

func (p *fakeProvider) ID() string           { return p.id }
func (p *fakeProvider) Enabled() bool        { return true }
func (p *fakeProvider) SupportsVision() bool { return false }
func (p *fakeProvider) ExpectsJSON() bool    { return true }

func (p *fakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func testSignal() *signal.Signal {
	return &signal.Signal{
		ID:         "sig-1",
		Pair:       "EUR/USD",
		Timeframe:  "H1",
		Direction:  analysis.Buy,
		EntryPrice: 1.1000,
		Status:     signal.StatusClosed,
		CreatedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func testOutcome(accurate bool) signal.Outcome {
	return signal.Outcome{
		SignalID:       "sig-1",
		ExitPrice:      1.1050,
		ProfitLossPips: 50,
		WasAccurate:    accurate,
		ClosedAt:       time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
	}
}

const validReflectionReply = `{
  "reflection": "technical factors drove the move",
  "factors_analysis": {
    "technical": {"impact": 0.8, "accuracy": 0.9, "notes": "trend held"},
    "fundamental": {"impact": 0.1, "accuracy": 0.5, "notes": "minor"},
    "sentiment": {"impact": 0.05, "accuracy": 0.4, "notes": "noise"},
    "economic": {"impact": 0.05, "accuracy": 0.4, "notes": "quiet calendar"}
  },
  "lessons_learned": ["trust the trend on H1"]
}`

func TestReflectWithProvider(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)
	p := &fakeProvider{id: "fake:model", reply: validReflectionReply}
	e := NewEngine([]provider.ModelProvider{p}, m, time.Second)

	report, bucket, err := e.Reflect(context.Background(), testSignal(), testOutcome(true))
	if err != nil {
		t.Fatalf("Reflect 报错: %v", err)
	}
	if report.Degraded {
		t.Fatal("推理成功不应降级")
	}
	if report.Factors[analysis.SourceTechnical].Impact != 0.8 {
		t.Fatalf("归因解析不对: %+v", report.Factors)
	}
	if len(report.Lessons) != 1 {
		t.Fatalf("lessons 解析不对: %v", report.Lessons)
	}
	if bucket.TotalSignals != 1 || bucket.AccurateSignals != 1 {
		t.Fatalf("桶未更新: %+v", bucket)
	}
	// 技术源归因冲击最大，权重应被拉高
	if bucket.FactorWeights[analysis.SourceTechnical] <= 0.25 {
		t.Fatalf("technical 权重应高于初始 0.25: %v", bucket.FactorWeights)
	}
	if p.calls != 1 {
		t.Fatalf("推理调用次数 = %d, 期望 1", p.calls)
	}
}

func TestReflectProviderFailureStillUpdatesBucket(t *testing.T) {
	store := newMemoryBucketStore()
	m := NewModel(store, 0.2)
	p := &fakeProvider{id: "fake:model", err: errors.New("upstream 503")}
	e := NewEngine([]provider.ModelProvider{p}, m, time.Second)

	report, bucket, err := e.Reflect(context.Background(), testSignal(), testOutcome(false))
	if err != nil {
		t.Fatalf("推理失败不应让 Reflect 报错: %v", err)
	}
	if !report.Degraded {
		t.Fatal("推理失败应返回降级报告")
	}
	if bucket.TotalSignals != 1 || bucket.AccurateSignals != 0 {
		t.Fatalf("降级路径也必须更新桶: %+v", bucket)
	}
	// 零冲击混合后权重保持等权
	for _, src := range analysis.Sources {
		if math.Abs(bucket.FactorWeights[src]-0.25) > 1e-9 {
			t.Fatalf("降级归因不应改变权重: %v", bucket.FactorWeights)
		}
	}
}

func TestReflectNoProvider(t *testing.T) {
	m := NewModel(newMemoryBucketStore(), 0.2)
	e := NewEngine(nil, m, time.Second)

	report, bucket, err := e.Reflect(context.Background(), testSignal(), testOutcome(true))
	if err != nil {
		t.Fatalf("Reflect 报错: %v", err)
	}
	if !report.Degraded || bucket.TotalSignals != 1 {
		t.Fatalf("无推理服务也要完成学习: degraded=%v bucket=%+v", report.Degraded, bucket)
	}
}

func TestReflectNilSignal(t *testing.T) {
	e := NewEngine(nil, NewModel(newMemoryBucketStore(), 0.2), time.Second)
	if _, _, err := e.Reflect(context.Background(), nil, testOutcome(true)); err == nil {
		t.Fatal("nil 信号应报错")
	}
}

func TestParseReportClampsAttribution(t *testing.T) {
	raw := `{
  "reflection": "r",
  "factors_analysis": {
    "technical": {"impact": 1.7, "accuracy": -0.3, "notes": "out of range"}
  },
  "lessons_learned": []
}`
	report, err := parseReport(raw, "sig-9")
	if err != nil {
		t.Fatalf("parseReport 报错: %v", err)
	}
	attr := report.Factors[analysis.SourceTechnical]
	if attr.Impact != 1.0 || attr.Accuracy != 0 {
		t.Fatalf("越界归因应被截断: %+v", attr)
	}
	// 缺失的源补零归因
	if _, ok := report.Factors[analysis.SourceSentiment]; !ok {
		t.Fatal("缺失源应补默认归因")
	}
}

func TestParseReportMissingFactors(t *testing.T) {
	if _, err := parseReport(`{"reflection": "r"}`, "sig-9"); err == nil {
		t.Fatal("缺 factors_analysis 应报错")
	}
}
