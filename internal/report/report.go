package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"forexjoey/internal/analysis"
	"forexjoey/internal/market"
	"forexjoey/internal/reflection"
)

// 中文说明：
// HTML 图表页。绩效页 = 权重柱状图 + 近期准确率折线；
// K 线页供人工查看，也被截图模块离线渲染后喂给视觉模型。

// RenderPerformancePage 渲染 (pair, timeframe) 桶的绩效页。
func RenderPerformancePage(w io.Writer, b *reflection.PerformanceBucket) error {
	if b == nil {
		return fmt.Errorf("nil bucket")
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s %s factor weights", b.Pair, b.Timeframe),
			Subtitle: fmt.Sprintf("signals=%d accuracy=%.2f", b.TotalSignals, b.AccuracyRate),
		}),
	)
	weightData := make([]opts.BarData, 0, len(analysis.Sources))
	accData := make([]opts.BarData, 0, len(analysis.Sources))
	for _, s := range analysis.Sources {
		weightData = append(weightData, opts.BarData{Value: b.FactorWeights[s]})
		accData = append(accData, opts.BarData{Value: b.FactorAccuracy[s]})
	}
	bar.SetXAxis(analysis.Sources).
		AddSeries("weight", weightData).
		AddSeries("accuracy", accData)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "recent outcomes"}),
	)
	labels := make([]string, 0, len(b.RecentOutcomes))
	hits := make([]opts.LineData, 0, len(b.RecentOutcomes))
	running := 0
	for i, ok := range b.RecentOutcomes {
		if ok {
			running++
		}
		labels = append(labels, fmt.Sprintf("#%d", i+1))
		hits = append(hits, opts.LineData{Value: float64(running) / float64(i+1)})
	}
	line.SetXAxis(labels).AddSeries("rolling accuracy", hits)

	page := components.NewPage()
	page.AddCharts(bar, line)
	return page.Render(w)
}

// RenderCandleChart 渲染 K 线页。
func RenderCandleChart(w io.Writer, pair market.Pair, timeframe string, candles []market.Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("no candles to render")
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s %s", pair.String(), timeframe),
		}),
		charts.WithXAxisOpts(opts.XAxis{SplitNumber: 20}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	x := make([]string, 0, len(candles))
	y := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		x = append(x, time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04"))
		// go-echarts K 线取值顺序: [open, close, low, high]
		y = append(y, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(x).AddSeries("kline", y)
	return kline.Render(w)
}
