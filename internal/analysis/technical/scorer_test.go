package technical

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
)

// makeCandles 生成带小幅波动的合成 K 线，drift 为每根的价格漂移。
func makeCandles(n int, start, drift float64) []market.Candle {
	out := make([]market.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		// 叠加固定周期的锯齿波，避免指标全程单边饱和
		wobble := 0.0008 * math.Sin(float64(i)/3)
		open := price
		close := price + drift + wobble
		high := math.Max(open, close) + 0.0004
		low := math.Min(open, close) - 0.0004
		out[i] = market.Candle{
			OpenTime:  int64(i) * 3_600_000,
			CloseTime: int64(i+1)*3_600_000 - 1,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000,
		}
		price = close
	}
	return out
}

func TestAnalyzeInsufficientData(t *testing.T) {
	candles := makeCandles(40, 1.1000, 0.0002)
	op, err := Analyze(candles, Config{})
	if !errors.Is(err, analysis.ErrInsufficientData) {
		t.Fatalf("期望 ErrInsufficientData, 实际 %v", err)
	}
	if op.Direction != analysis.Neutral || op.Confidence != 0 {
		t.Fatalf("数据不足应返回零置信中性观点: %s %.2f", op.Direction, op.Confidence)
	}
	if len(op.Factors) != 1 || op.Factors[0].Name != "insufficient_data" {
		t.Fatalf("缺 insufficient_data 因子: %v", op.Factors)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	candles := makeCandles(120, 1.1000, 0.0003)
	a, err1 := Analyze(candles, Config{})
	b, err2 := Analyze(candles, Config{})
	if err1 != nil || err2 != nil {
		t.Fatalf("分析报错: %v / %v", err1, err2)
	}
	if a.Direction != b.Direction || a.Confidence != b.Confidence {
		t.Fatalf("同一序列两次结果不一致: %s %.4f vs %s %.4f", a.Direction, a.Confidence, b.Direction, b.Confidence)
	}
	if !reflect.DeepEqual(a.Factors, b.Factors) {
		t.Fatal("同一序列两次因子列表不一致")
	}
}

func TestAnalyzeConfidenceBounds(t *testing.T) {
	for _, drift := range []float64{0.0005, -0.0005, 0} {
		candles := makeCandles(150, 1.2500, drift)
		op, err := Analyze(candles, Config{})
		if err != nil {
			t.Fatalf("分析报错: %v", err)
		}
		if op.Confidence < 0.5 || op.Confidence > 1 {
			t.Fatalf("置信度 %v 越界 [0.5, 1]", op.Confidence)
		}
		switch op.Direction {
		case analysis.Buy, analysis.Sell, analysis.Neutral:
		default:
			t.Fatalf("非法方向 %q", op.Direction)
		}
	}
}

func TestAnalyzeEmitsSummaryAndATR(t *testing.T) {
	candles := makeCandles(120, 1.1000, 0.0003)
	op, err := Analyze(candles, Config{})
	if err != nil {
		t.Fatalf("分析报错: %v", err)
	}

	lastFactor := op.Factors[len(op.Factors)-1]
	if lastFactor.Name != "signal_summary" {
		t.Fatalf("末位因子 = %q, 期望 signal_summary", lastFactor.Name)
	}

	atr, ok := analysis.FloatFactor(op.Factors, "atr")
	if !ok || atr <= 0 {
		t.Fatalf("atr 因子缺失或非正: %v %v", atr, ok)
	}
}

func TestAnalyzeTrendVoting(t *testing.T) {
	// 持续上行的序列里，价格必然站上 20/50 均线，买票不应为零
	up, err := Analyze(makeCandles(150, 1.1000, 0.0006), Config{})
	if err != nil {
		t.Fatalf("分析报错: %v", err)
	}
	if up.Direction == analysis.Sell && up.Confidence > 0.8 {
		t.Fatalf("强上行序列不应给出高置信 SELL: %.2f", up.Confidence)
	}

	if _, ok := analysis.FloatFactor(up.Factors, "price_above_sma_20"); !ok {
		t.Fatal("上行序列应产生 price_above_sma_20 因子")
	}
}
