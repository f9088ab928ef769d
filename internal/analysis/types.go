package analysis

import (
	"encoding/json"
	"strings"
)

// 中文说明：
// 本文件定义四路分析源共用的观点数据结构。Opinion 一经返回即视为不可变，
// 由发起分析的调用方持有。

// Direction 方向判断。
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL"
)

// ParseDirection 宽松解析模型返回的方向写法。
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "LONG", "BULLISH":
		return Buy, true
	case "SELL", "SHORT", "BEARISH":
		return Sell, true
	case "NEUTRAL", "HOLD", "FLAT", "NONE":
		return Neutral, true
	default:
		return Neutral, false
	}
}

// Value 把方向映射为 {BUY:+1, NEUTRAL:0, SELL:-1}，供加权投票使用。
func (d Direction) Value() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// 四个分析源的固定标识，同时也是 PerformanceBucket 权重表的 key。
const (
	SourceTechnical   = "technical"
	SourceFundamental = "fundamental"
	SourceSentiment   = "sentiment"
	SourceEconomic    = "economic"
)

// Sources 按固定顺序列出全部分析源。
var Sources = []string{SourceTechnical, SourceFundamental, SourceSentiment, SourceEconomic}

// Factor 一条证据因子。Value 类型不限（数值、文本或嵌套对象）。
type Factor struct {
	Name           string `json:"name"`
	Value          any    `json:"value,omitempty"`
	Interpretation string `json:"interpretation"`
}

// UnmarshalJSON 兼容模型把因子写成裸字符串的情况。
func (f *Factor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Interpretation = s
		return nil
	}
	type alias Factor
	return json.Unmarshal(data, (*alias)(f))
}

// Opinion 单一分析源的方向观点与证据。
type Opinion struct {
	Source     string    `json:"source"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence_score"`
	Factors    []Factor  `json:"factors"`
}

// DegradedOpinion 构造某一源失败后的降级观点：NEUTRAL、零置信，附错误因子。
func DegradedOpinion(source string, err error) Opinion {
	interp := "analysis unavailable"
	var val any
	if err != nil {
		val = err.Error()
	}
	return Opinion{
		Source:     source,
		Direction:  Neutral,
		Confidence: 0,
		Factors: []Factor{{
			Name:           "error",
			Value:          val,
			Interpretation: interp,
		}},
	}
}

// FloatFactor 按名称查找数值型因子。
func FloatFactor(factors []Factor, name string) (float64, bool) {
	for _, f := range factors {
		if f.Name != name {
			continue
		}
		switch v := f.Value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case json.Number:
			if fv, err := v.Float64(); err == nil {
				return fv, true
			}
		}
	}
	return 0, false
}
