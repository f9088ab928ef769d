package ai

import (
	"math"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"fenced_no_lang", "```\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"prose_around", `Sure! {"a": {"b": 2}} hope that helps`, `{"a": {"b": 2}}`, true},
		{"brace_in_string", `{"msg": "use {curly} braces"}`, `{"msg": "use {curly} braces"}`, true},
		{"escaped_quote", `{"msg": "say \"hi\" {ok}"}`, `{"msg": "say \"hi\" {ok}"}`, true},
		{"no_object", "no structured data here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
		{"empty", "", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(c.in)
			if ok != c.ok || got != c.want {
				t.Fatalf("ExtractJSONObject(%q) = %q,%v, 期望 %q,%v", c.in, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestForgivingFloat(t *testing.T) {
	cases := []struct {
		name    string
		in      any
		percent bool
		want    float64
		ok      bool
	}{
		{"float64", 0.75, true, 0.75, true},
		{"int", 1, false, 1, true},
		{"percent_string", "75%", true, 0.75, true},
		{"percent_word", "75 percent", true, 0.75, true},
		{"percent_disabled", "75%", false, 75, true},
		{"plain_string", "0.42", true, 0.42, true},
		{"thousands", "1,250", false, 1250, true},
		{"negative", "-0.3", false, -0.3, true},
		{"nil", nil, false, 0, false},
		{"garbage", "high", false, 0, false},
		{"nan", math.NaN(), false, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ForgivingFloat(c.in, c.percent)
			if ok != c.ok || math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("ForgivingFloat(%v) = %v,%v, 期望 %v,%v", c.in, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestTrimTo(t *testing.T) {
	if got := TrimTo("abcdef", 3); got != "abc..." {
		t.Fatalf("TrimTo = %q, 期望 abc...", got)
	}
	if got := TrimTo("abc", 10); got != "abc" {
		t.Fatalf("短串不应截断: %q", got)
	}
	if got := TrimTo("abc", 0); got != "abc" {
		t.Fatalf("max<=0 不应截断: %q", got)
	}
}

func TestPrettyJSON(t *testing.T) {
	if got := PrettyJSON(`{"a":1}`); got != "{\n  \"a\": 1\n}" {
		t.Fatalf("PrettyJSON = %q", got)
	}
	if got := PrettyJSON("not json"); got != "not json" {
		t.Fatalf("非 JSON 原样返回: %q", got)
	}
}
