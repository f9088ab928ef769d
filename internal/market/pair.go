package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPairFormat 货币对格式非法。该错误直接返回给调用方，不做降级。
var ErrInvalidPairFormat = errors.New("invalid currency pair format")

// Pair 解析后的货币对。
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// ParsePair 接受 "EUR/USD" 或 "EURUSD" 两种写法，其余一律报 ErrInvalidPairFormat。
func ParsePair(raw string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	var base, quote string
	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPairFormat, raw)
		}
		base, quote = parts[0], parts[1]
	case len(s) == 6:
		base, quote = s[:3], s[3:]
	default:
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPairFormat, raw)
	}
	if !isCurrencyCode(base) || !isCurrencyCode(quote) {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPairFormat, raw)
	}
	return Pair{Base: base, Quote: quote}, nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// PipSize 标准点值：JPY 计价对为 0.01，其余 0.0001。
func PipSize(p Pair) float64 {
	if p.Quote == "JPY" {
		return 0.01
	}
	return 0.0001
}

// PipsBetween 把价差换算为点数（带方向）。
func PipsBetween(p Pair, from, to float64) float64 {
	return (to - from) / PipSize(p)
}

// 支持的分析周期。周期表沿用行业惯例缩写。
var knownTimeframes = map[string]string{
	"M15": "15m",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1d",
	"W1":  "1w",
}

// NormalizeTimeframe 校验并规整周期写法；未知周期原样返回（调用侧按 Unknown 处理）。
func NormalizeTimeframe(tf string) string {
	return strings.ToUpper(strings.TrimSpace(tf))
}

// TimeframeInterval 将周期映射为交易所 K 线 interval；未知周期返回 false。
func TimeframeInterval(tf string) (string, bool) {
	iv, ok := knownTimeframes[NormalizeTimeframe(tf)]
	return iv, ok
}
