package fundamental

import (
	"math"
	"testing"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
)

var eurusd = market.Pair{Base: "EUR", Quote: "USD"}

func TestAnalyzeNoData(t *testing.T) {
	op := Analyze(eurusd, Snapshot{})
	if op.Direction != analysis.Neutral || op.Confidence != 0 {
		t.Fatalf("空快照应返回零置信中性: %s %.2f", op.Direction, op.Confidence)
	}
	if len(op.Factors) != 1 || op.Factors[0].Name != "no_data" {
		t.Fatalf("缺 no_data 因子: %v", op.Factors)
	}
}

func TestAnalyzeRateDifferentialBuy(t *testing.T) {
	snap := Snapshot{BaseRate: 4.5, QuoteRate: 0.5, HasRates: true}
	op := Analyze(eurusd, snap)
	if op.Direction != analysis.Buy {
		t.Fatalf("正利差应判 BUY, 实际 %s", op.Direction)
	}
	// 利差 4 个点截断到满分，归一化后 score=1，conf = 0.5 + min(0.3, 0.5) = 0.8
	if math.Abs(op.Confidence-0.8) > 1e-9 {
		t.Fatalf("置信度 = %v, 期望 0.8", op.Confidence)
	}
	score, ok := analysis.FloatFactor(op.Factors, "fundamental_score")
	if !ok || math.Abs(score-1) > 1e-9 {
		t.Fatalf("合成分 = %v, 期望 1", score)
	}
}

func TestAnalyzeRateDifferentialSell(t *testing.T) {
	snap := Snapshot{BaseRate: 0.5, QuoteRate: 5.5, HasRates: true}
	op := Analyze(eurusd, snap)
	if op.Direction != analysis.Sell {
		t.Fatalf("负利差应判 SELL, 实际 %s", op.Direction)
	}
}

func TestAnalyzeSmallDifferentialNeutral(t *testing.T) {
	snap := Snapshot{BaseRate: 4.0, QuoteRate: 3.8, HasRates: true}
	op := Analyze(eurusd, snap)
	// 利差 0.2 → 贡献 0.1，阈值内
	if op.Direction != analysis.Neutral || op.Confidence != 0.5 {
		t.Fatalf("小利差应 NEUTRAL 0.5: %s %.2f", op.Direction, op.Confidence)
	}
}

func TestAnalyzeGrowthOffsetsRates(t *testing.T) {
	snap := Snapshot{
		BaseRate: 4.5, QuoteRate: 0.5, HasRates: true,
		BaseGDPGrowth: -3.0, QuoteGDPGrowth: 3.0, HasGrowth: true,
	}
	op := Analyze(eurusd, snap)
	// score = (1*0.5 + (-1)*0.25) / 0.75 = 1/3，仍过阈值判 BUY
	if op.Direction != analysis.Buy {
		t.Fatalf("利率主导下应仍判 BUY, 实际 %s", op.Direction)
	}
	score, _ := analysis.FloatFactor(op.Factors, "fundamental_score")
	if math.Abs(score-1.0/3.0) > 1e-9 {
		t.Fatalf("合成分 = %v, 期望 1/3", score)
	}
}

func TestAnalyzeSurprises(t *testing.T) {
	snap := Snapshot{
		Surprises: []Surprise{
			{Indicator: "CPI", Currency: "EUR", Actual: 3.3, Forecast: 3.0},
			{Indicator: "NFP", Currency: "USD", Actual: 150, Forecast: 200},
			{Indicator: "GDP", Currency: "GBP", Actual: 1, Forecast: 1},
		},
	}
	op := Analyze(eurusd, snap)
	// EUR 超预期 +0.1，USD 不及预期 -0.25 折为 +0.25，均值 0.175
	// 仅意外分项有数据，归一化后 score = 0.175
	score, ok := analysis.FloatFactor(op.Factors, "fundamental_score")
	if !ok || math.Abs(score-0.175) > 1e-9 {
		t.Fatalf("合成分 = %v, 期望 0.175", score)
	}
	if op.Direction != analysis.Neutral {
		t.Fatalf("0.175 在阈值内应 NEUTRAL, 实际 %s", op.Direction)
	}
	// 非两侧货币的意外不参与，因子也不记录
	for _, f := range op.Factors {
		if f.Name == "macro_surprise" {
			v := f.Value.(map[string]any)
			if v["currency"] == "GBP" {
				t.Fatal("GBP 意外不应入选")
			}
		}
	}
}

func TestSurpriseScoreZeroForecast(t *testing.T) {
	if v, ok := surpriseScore(Surprise{Actual: 0.5, Forecast: 0}); !ok || v != 1 {
		t.Fatalf("预期为零且超出应记满分: %v %v", v, ok)
	}
	if v, ok := surpriseScore(Surprise{Actual: -0.5, Forecast: 0}); !ok || v != -1 {
		t.Fatalf("预期为零且不及应记负满分: %v %v", v, ok)
	}
	if v, ok := surpriseScore(Surprise{Actual: 2, Forecast: 2}); !ok || v != 0 {
		t.Fatalf("持平应记零: %v %v", v, ok)
	}
}
