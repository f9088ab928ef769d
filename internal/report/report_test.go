package report

import (
	"bytes"
	"strings"
	"testing"

	"forexjoey/internal/market"
	"forexjoey/internal/reflection"
)

func TestRenderPerformancePage(t *testing.T) {
	b := reflection.NewBucket("EUR/USD", "H1")
	b.TotalSignals = 5
	b.AccurateSignals = 3
	b.AccuracyRate = 0.6
	b.RecentOutcomes = []bool{true, false, true, true, false}

	var buf bytes.Buffer
	if err := RenderPerformancePage(&buf, b); err != nil {
		t.Fatalf("渲染报错: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "EUR/USD H1 factor weights") {
		t.Fatal("页面缺少权重图标题")
	}
	if !strings.Contains(html, "rolling accuracy") {
		t.Fatal("页面缺少准确率折线")
	}
}

func TestRenderPerformancePageNilBucket(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPerformancePage(&buf, nil); err == nil {
		t.Fatal("nil 桶应报错")
	}
}

func TestRenderCandleChart(t *testing.T) {
	pair := market.Pair{Base: "EUR", Quote: "USD"}
	candles := []market.Candle{
		{OpenTime: 1700000000000, Open: 1.10, High: 1.11, Low: 1.09, Close: 1.105},
		{OpenTime: 1700003600000, Open: 1.105, High: 1.12, Low: 1.10, Close: 1.115},
	}
	var buf bytes.Buffer
	if err := RenderCandleChart(&buf, pair, "H1", candles); err != nil {
		t.Fatalf("渲染报错: %v", err)
	}
	if !strings.Contains(buf.String(), "EUR/USD H1") {
		t.Fatal("K 线页缺少标题")
	}
}

func TestRenderCandleChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCandleChart(&buf, market.Pair{Base: "EUR", Quote: "USD"}, "H1", nil); err == nil {
		t.Fatal("空序列应报错")
	}
}
