package ai

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// 中文说明：
// 模型输出的宽松解析工具。模型经常把 JSON 包进 ```json 代码块、
// 混进解释性文字，或把数字写成 "75%" 这样的字符串，这里统一清洗。

// PrettyJSON 尝试对 JSON 文本进行缩进美化；失败则返回原文
func PrettyJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(b)
}

// TrimTo 限制字符串长度，超长则追加省略号
func TrimTo(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSONObject 从模型回复中提取首个平衡的 JSON 对象文本。
// 优先取代码块内容，其次在全文中扫描第一段 {...}。
func ExtractJSONObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if m := fencePattern.FindStringSubmatch(raw); len(m) == 2 {
		if obj, ok := scanBalancedObject(m[1]); ok {
			return obj, true
		}
	}
	return scanBalancedObject(raw)
}

// scanBalancedObject 找到首个 '{'，按括号深度配对截取；跳过字符串字面量内部。
func scanBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// ForgivingFloat 把模型返回的任意数值形态转成 float64。
// treatPercent 为真时，"75%" 解释为 0.75。
func ForgivingFloat(val any, treatPercent bool) (float64, bool) {
	switch v := val.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		return parseNumericString(v, treatPercent)
	default:
		return 0, false
	}
}

func parseNumericString(input string, treatPercent bool) (float64, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	lower := strings.ToLower(s)
	percentLike := strings.Contains(lower, "%") || strings.Contains(lower, "percent") || strings.Contains(lower, "pct")
	token := numberPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if token == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	if treatPercent && percentLike {
		f = f / 100
	}
	return f, true
}
