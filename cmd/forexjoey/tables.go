package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"forexjoey/internal/analysis"
	"forexjoey/internal/decision"
	"forexjoey/internal/signal"
)

// 中文说明：
// 单次分析模式的终端输出：决策概览、各源因子、信号参数各一张表。

func printDecision(w io.Writer, d decision.CombinedDecision) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("融合决策 %s %s", d.Pair, d.Timeframe)
	t.AppendRows([]table.Row{
		{"方向", string(d.Direction)},
		{"置信度", fmt.Sprintf("%.2f", d.Confidence)},
		{"决策来源", d.DecidedBy},
		{"摘要", d.Summary},
	})
	if d.Reasoning != "" {
		t.AppendRow(table.Row{"推理", d.Reasoning})
	}
	t.Render()

	printFactors(w, "技术面", d.TechnicalFactors)
	printFactors(w, "基本面", d.FundamentalFactors)
	printFactors(w, "情绪面", d.SentimentFactors)
	printFactors(w, "经济日历", d.EconomicFactors)
}

func printFactors(w io.Writer, title string, factors []analysis.Factor) {
	if len(factors) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"因子", "取值", "解读"})
	for _, f := range factors {
		value := ""
		if f.Value != nil {
			value = fmt.Sprintf("%v", f.Value)
		}
		t.AppendRow(table.Row{f.Name, value, f.Interpretation})
	}
	t.Render()
}

func printSignal(w io.Writer, res signal.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if !res.Generated || res.Signal == nil {
		t.SetTitle("信号被抑制")
		t.AppendRow(table.Row{"原因", res.Reason})
		t.Render()
		return
	}
	s := res.Signal
	t.SetTitle("交易信号 %s", s.ID)
	t.AppendRows([]table.Row{
		{"方向", string(s.Direction)},
		{"入场价", fmt.Sprintf("%.5f", s.EntryPrice)},
		{"止损", fmt.Sprintf("%.5f", s.StopLoss)},
		{"止盈", fmt.Sprintf("%.5f", s.TakeProfit)},
		{"盈亏比", fmt.Sprintf("%.2f", s.RiskReward)},
		{"置信度", fmt.Sprintf("%.2f", s.Confidence)},
		{"预期持仓", s.ExpectedDuration},
	})
	t.Render()
}
